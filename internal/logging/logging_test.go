package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("chatty")
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Format = "xml"
	assert.True(t, gferrors.IsValidationError(cfg.Validate()))

	_, _, err := New(cfg)
	assert.Error(t, err)
}

func TestNewWithSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "info", Format: FormatJSON}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("pool started", zap.String("pool", "ingest"), zap.Int("workers", 4))
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "pool started", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ingest", entry["pool"])
	assert.Equal(t, float64(4), entry["workers"])
}

func TestNewWithSink_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "debug"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("worker spawned", zap.Int("worker_id", 3))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "worker spawned")
	assert.Contains(t, out, `"worker_id": 3`)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executors.log")
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.File = path

	logger, closeFn, err := New(cfg)
	require.NoError(t, err)
	logger.Warn("shutdown grace period exceeded", zap.Int("live_workers", 2))
	require.NoError(t, closeFn())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "shutdown grace period exceeded")
	assert.Contains(t, string(content), `"live_workers":2`)
}
