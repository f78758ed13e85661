// Package config loads executor profiles from YAML files and the
// environment.
package config

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vnykmshr/executors/internal/logging"
	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/queue"
	"github.com/vnykmshr/executors/pkg/scheduling/scheduler"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
	"github.com/vnykmshr/executors/pkg/scheduling/workerpool"
)

// EnvPrefix prefixes environment overrides, e.g. EXECUTORS_LOGGING_LEVEL.
const EnvPrefix = "EXECUTORS"

// Config is the file configuration of the executors command.
type Config struct {
	Logging logging.Config `yaml:"logging"`
	Metrics Metrics        `yaml:"metrics"`
	Pools   []Pool         `yaml:"pools"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// Pool is one named pool profile together with the synthetic workload the
// run command submits to it.
type Pool struct {
	Name            string                     `yaml:"name"`
	Sizing          workerpool.Sizing          `yaml:"sizing"`
	CoreWorkers     int                        `yaml:"core-workers,omitempty"`
	MaxWorkers      int                        `yaml:"max-workers,omitempty"`
	IdleTimeout     time.Duration              `yaml:"idle-timeout,omitempty"`
	Queue           queue.Kind                 `yaml:"queue"`
	QueueCapacity   int                        `yaml:"queue-capacity,omitempty"`
	Rejection       workerpool.RejectionPolicy `yaml:"rejection"`
	TaskTimeout     time.Duration              `yaml:"task-timeout,omitempty"`
	ShutdownTimeout time.Duration              `yaml:"shutdown-timeout,omitempty"`
	MaxScheduled    int                        `yaml:"max-scheduled,omitempty"`
	Workload        Workload                   `yaml:"workload"`
}

// Workload describes the tasks submitted to a profile.
type Workload struct {
	// Tasks is the number of one-shot tasks.
	Tasks int `yaml:"tasks"`
	// Duration is how long each task sleeps.
	Duration time.Duration `yaml:"duration"`
	// Delay postpones every task.
	Delay time.Duration `yaml:"delay,omitempty"`
	// Period, when set, adds one periodic task cancelled after Runs runs.
	Period time.Duration `yaml:"period,omitempty"`
	// Cron, when set, adds one cron task cancelled after Runs runs.
	Cron string `yaml:"cron,omitempty"`
	Runs int    `yaml:"runs,omitempty"`
}

// Default returns the configuration used when no file is given: one
// profile per sizing policy.
func Default() Config {
	return Config{
		Logging: logging.DefaultConfig(),
		Metrics: Metrics{Address: ":9090", Namespace: "executors"},
		Pools:   DefaultPools(),
	}
}

// DefaultPools returns the seven classic demonstrations.
func DefaultPools() []Pool {
	work := Workload{Tasks: 6, Duration: 50 * time.Millisecond}
	return []Pool{
		{Name: "fixed", Sizing: workerpool.Fixed, CoreWorkers: 3, Workload: work},
		{Name: "cached", Sizing: workerpool.Cached, Queue: queue.Synchronous, Workload: work},
		{Name: "single", Sizing: workerpool.Single, Workload: work},
		{
			Name: "scheduled", Sizing: workerpool.Fixed, CoreWorkers: 2, Queue: queue.Priority,
			Workload: Workload{Tasks: 2, Duration: 10 * time.Millisecond, Delay: 200 * time.Millisecond, Period: 100 * time.Millisecond, Runs: 3},
		},
		{
			Name: "single-scheduled", Sizing: workerpool.Single, Queue: queue.Priority,
			Workload: Workload{Tasks: 1, Duration: 10 * time.Millisecond, Cron: "* * * * * *", Runs: 2},
		},
		{Name: "work-stealing", Sizing: workerpool.WorkStealing, Queue: queue.WorkStealing, Workload: work},
		{
			Name: "manual", Sizing: workerpool.Custom, CoreWorkers: 1, MaxWorkers: 2,
			IdleTimeout: 100 * time.Second, Queue: queue.FIFO, QueueCapacity: 1,
			Rejection: workerpool.CustomRejection, Workload: work,
		},
	}
}

// NewViper returns a viper instance with defaults and environment
// overrides for the scalar settings.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max-size-mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max-backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max-age-days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"log-file":        "logging.file",
	"metrics":         "metrics.enabled",
	"metrics-address": "metrics.address",
}

// BindFlags binds the flags of fs that override configuration keys. Flags
// absent from fs are skipped.
func BindFlags(v *viper.Viper, fs *flag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error while binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads path (YAML) on top of the defaults. An empty path loads the
// defaults and the environment only.
func Load(path string) (Config, error) {
	return LoadWithFlags(path, nil)
}

// LoadWithFlags is like Load with flags of fs taking precedence over the
// file and the environment.
func LoadWithFlags(path string, fs *flag.FlagSet) (Config, error) {
	v := NewViper()
	if fs != nil {
		if err := BindFlags(v, fs); err != nil {
			return Config{}, err
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error while reading the config file: %w", err)
		}
	}
	return Decode(v)
}

// Parse is like Load for an in-memory document.
func Parse(doc []byte) (Config, error) {
	v := NewViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(doc)); err != nil {
		return Config{}, fmt.Errorf("error while parsing the config: %w", err)
	}
	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook()), func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.ErrorUnused = true
	})
	if err != nil {
		return Config{}, fmt.Errorf("error while unmarshaling the config: %w", err)
	}
	if len(cfg.Pools) == 0 {
		cfg.Pools = DefaultPools()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeHook converts strings to durations and to the policy enums.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		intToDurationHookFunc(),
	)
}

// intToDurationHookFunc reads bare YAML integers as seconds. Values that
// an earlier hook already turned into a time.Duration pass through.
func intToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != durationType || f == durationType {
			return data, nil
		}
		switch f.Kind() {
		case reflect.Int, reflect.Int64, reflect.Int32:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		default:
			return data, nil
		}
	}
}

// Validate checks logging settings and every pool profile.
func (c Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Pools))
	for i, p := range c.Pools {
		if p.Name == "" {
			return gferrors.NewValidationError("config", fmt.Sprintf("pools[%d].name", i), "", "cannot be empty")
		}
		if seen[p.Name] {
			return gferrors.NewValidationError("config", fmt.Sprintf("pools[%d].name", i), p.Name, "duplicate profile name")
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return fmt.Errorf("pool %q: %w", p.Name, err)
		}
	}
	return nil
}

// Validate checks the profile as the pool constructor would.
func (p Pool) Validate() error {
	if err := p.PoolConfig(nil).WithDefaults().Validate(); err != nil {
		return err
	}
	w := p.Workload
	if w.Tasks < 0 || w.Runs < 0 || w.Duration < 0 || w.Delay < 0 || w.Period < 0 {
		return gferrors.NewValidationError("config", "workload", w, "values cannot be negative")
	}
	if w.Cron != "" {
		if err := scheduler.ValidateCron(w.Cron); err != nil {
			return gferrors.NewValidationError("config", "workload.cron", w.Cron, err.Error())
		}
	}
	return nil
}

// PoolConfig converts the profile to a pool configuration. The custom
// rejection policy runs overflow on the submitting goroutine.
func (p Pool) PoolConfig(logger *zap.Logger) workerpool.Config {
	cfg := workerpool.Config{
		Name:            p.Name,
		Sizing:          p.Sizing,
		CoreWorkers:     p.CoreWorkers,
		MaxWorkers:      p.MaxWorkers,
		IdleTimeout:     p.IdleTimeout,
		QueueKind:       p.Queue,
		QueueCapacity:   p.QueueCapacity,
		Rejection:       p.Rejection,
		TaskTimeout:     p.TaskTimeout,
		ShutdownTimeout: p.ShutdownTimeout,
		MaxScheduled:    p.MaxScheduled,
		Logger:          logger,
	}
	if p.Rejection == workerpool.CustomRejection {
		cfg.RejectionHandler = func(t *task.Task, pool *workerpool.Pool) error {
			return pool.RunInline(t)
		}
	}
	return cfg
}

// Effective returns the profile with the defaults its sizing implies.
func (p Pool) Effective() Pool {
	cfg := p.PoolConfig(nil).WithDefaults()
	p.CoreWorkers = cfg.CoreWorkers
	p.MaxWorkers = cfg.MaxWorkers
	p.IdleTimeout = cfg.IdleTimeout
	p.Queue = cfg.QueueKind
	p.QueueCapacity = cfg.QueueCapacity
	p.MaxScheduled = cfg.MaxScheduled
	return p
}

// Lookup returns the profiles named in names, in that order. No names
// selects every profile.
func (c Config) Lookup(names ...string) ([]Pool, error) {
	if len(names) == 0 {
		return c.Pools, nil
	}
	byName := make(map[string]Pool, len(c.Pools))
	for _, p := range c.Pools {
		byName[p.Name] = p
	}
	out := make([]Pool, 0, len(names))
	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, gferrors.NewValidationError("config", "profile", name, "unknown profile").
				WithHint("run 'executors config' to list profiles")
		}
		out = append(out, p)
	}
	return out, nil
}

// YAML renders c with every profile expanded to its effective values.
func (c Config) YAML() ([]byte, error) {
	eff := c
	eff.Pools = make([]Pool, len(c.Pools))
	for i, p := range c.Pools {
		eff.Pools[i] = p.Effective()
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(eff); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
