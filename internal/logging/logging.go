// Package logging builds the zap loggers used by the executors command.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

// Formats accepted by Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config describes where and how to log.
type Config struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string `mapstructure:"level" yaml:"level"`

	// Format is console or json (default: console).
	Format string `mapstructure:"format" yaml:"format"`

	// File, when set, redirects output to a rotated file instead of stderr.
	File string `mapstructure:"file" yaml:"file,omitempty"`

	// Rotation settings, used only with File.
	MaxSizeMB  int  `mapstructure:"max-size-mb" yaml:"max-size-mb"`
	MaxBackups int  `mapstructure:"max-backups" yaml:"max-backups"`
	MaxAgeDays int  `mapstructure:"max-age-days" yaml:"max-age-days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatConsole,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// ParseLevel converts a level name to a zap level. "warning" is accepted
// as an alias of warn.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return level, gferrors.NewValidationError("logging", "level", name, "unknown level").
			WithHint("use one of debug, info, warn, error")
	}
	return level, nil
}

// Validate checks the level and format.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", FormatConsole, FormatJSON:
	default:
		return gferrors.NewValidationError("logging", "format", c.Format, "unknown format").
			WithHint("use console or json")
	}
	return nil
}

// New builds a logger from cfg. The returned function flushes the logger
// and closes the log file, if any.
func New(cfg Config) (*zap.Logger, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		sink    zapcore.WriteSyncer
		closeFn = func() error { return nil }
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		sink = zapcore.AddSync(rotator)
		closeFn = rotator.Close
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	logger, err := NewWithSink(cfg, sink)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() error {
		// Sync on stderr fails on some platforms; only the file matters.
		_ = logger.Sync()
		if err := closeFn(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		return nil
	}, nil
}

// NewWithSink builds a logger writing to sink.
func NewWithSink(cfg Config, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == FormatJSON {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
