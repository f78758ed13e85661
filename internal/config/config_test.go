package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/queue"
	"github.com/vnykmshr/executors/pkg/scheduling/workerpool"
)

const sample = `
logging:
  level: debug
  format: json
metrics:
  enabled: true
  address: 127.0.0.1:9100
pools:
  - name: ingest
    sizing: custom
    core-workers: 2
    max-workers: 8
    idle-timeout: 30s
    queue: priority
    queue-capacity: 100
    rejection: caller-runs
    task-timeout: 5
    workload:
      tasks: 10
      duration: 20ms
  - name: burst
    sizing: cached
    rejection: discard-oldest
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 100, cfg.Logging.MaxSizeMB, "unset keys keep their defaults")
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Address)

	require.Len(t, cfg.Pools, 2)
	ingest := cfg.Pools[0]
	assert.Equal(t, workerpool.Custom, ingest.Sizing)
	assert.Equal(t, 2, ingest.CoreWorkers)
	assert.Equal(t, 8, ingest.MaxWorkers)
	assert.Equal(t, 30*time.Second, ingest.IdleTimeout)
	assert.Equal(t, queue.Priority, ingest.Queue)
	assert.Equal(t, 100, ingest.QueueCapacity)
	assert.Equal(t, workerpool.CallerRuns, ingest.Rejection)
	assert.Equal(t, 5*time.Second, ingest.TaskTimeout, "bare integers are seconds")
	assert.Equal(t, 10, ingest.Workload.Tasks)
	assert.Equal(t, 20*time.Millisecond, ingest.Workload.Duration)

	assert.Equal(t, workerpool.Cached, cfg.Pools[1].Sizing)
	assert.Equal(t, workerpool.DiscardOldest, cfg.Pools[1].Rejection)
}

func TestDecodeHook_Durations(t *testing.T) {
	var out struct {
		Text    time.Duration `mapstructure:"text"`
		Seconds time.Duration `mapstructure:"seconds"`
		Typed   time.Duration `mapstructure:"typed"`
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{DecodeHook: DecodeHook(), Result: &out})
	require.NoError(t, err)

	require.NoError(t, dec.Decode(map[string]any{
		"text":    "1m30s",
		"seconds": 2,
		"typed":   250 * time.Millisecond,
	}))
	assert.Equal(t, 90*time.Second, out.Text, "parsed strings are not scaled again")
	assert.Equal(t, 2*time.Second, out.Seconds)
	assert.Equal(t, 250*time.Millisecond, out.Typed)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown sizing", "pools:\n  - name: a\n    sizing: elastic\n"},
		{"unknown key", "pools:\n  - name: a\n    wokers: 3\n"},
		{"bad duration", "pools:\n  - name: a\n    idle-timeout: soon\n"},
		{"invalid pool", "pools:\n  - name: a\n    sizing: custom\n    core-workers: 4\n    max-workers: 2\n"},
		{"duplicate name", "pools:\n  - name: a\n  - name: a\n"},
		{"missing name", "pools:\n  - sizing: single\n"},
		{"bad cron", "pools:\n  - name: a\n    workload:\n      cron: sometimes\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("pools:\n  - name: a\n    sizing: custom\n"))
	assert.ErrorIs(t, err, gferrors.ErrInvalidConfiguration)
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("EXECUTORS_LOGGING_LEVEL", "warn")
	t.Setenv("EXECUTORS_METRICS_ADDRESS", ":9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
	assert.Len(t, cfg.Pools, 7)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pools, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultPools(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	names := make([]string, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"fixed", "cached", "single", "scheduled", "single-scheduled", "work-stealing", "manual"}, names)

	manual, err := cfg.Lookup("manual")
	require.NoError(t, err)
	pc := manual[0].PoolConfig(nil)
	assert.NotNil(t, pc.RejectionHandler)
	assert.Equal(t, 100*time.Second, pc.IdleTimeout)
}

func TestLookup(t *testing.T) {
	cfg := Default()

	all, err := cfg.Lookup()
	require.NoError(t, err)
	assert.Len(t, all, 7)

	some, err := cfg.Lookup("single", "fixed")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "single", some[0].Name)
	assert.Equal(t, "fixed", some[1].Name)

	_, err = cfg.Lookup("nope")
	assert.True(t, gferrors.IsValidationError(err))
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	out, err := cfg.YAML()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	pools := doc["pools"].([]any)
	cached := pools[1].(map[string]any)
	assert.Equal(t, "cached", cached["sizing"])
	assert.Equal(t, "synchronous", cached["queue"])
	assert.Equal(t, workerpool.DefaultCachedMaxWorkers, cached["max-workers"], "effective values are printed")
	assert.Equal(t, "1m0s", cached["idle-timeout"])

	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, "cached", back.Pools[1].Name)
	assert.Equal(t, workerpool.DefaultCachedMaxWorkers, back.Pools[1].MaxWorkers)
}

func TestLoadWithFlags(t *testing.T) {
	t.Setenv("EXECUTORS_LOGGING_LEVEL", "warn")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.String("log-format", "console", "")
	fs.Bool("metrics", false, "")
	require.NoError(t, fs.Parse([]string{"--log-level=error", "--metrics"}))

	cfg, err := LoadWithFlags("", fs)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level, "flags beat the environment")
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
}
