package workerpool

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/executors/pkg/common/validation"
	"github.com/vnykmshr/executors/pkg/metrics"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// MetricsPool is a Pool that reports its events to Prometheus.
type MetricsPool struct {
	*Pool

	name     string
	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsPool)(nil)

// NewWithMetrics creates a pool instrumented with the registry described
// by metricsConfig. The pool name labels every metric.
func NewWithMetrics(cfg Config, metricsConfig metrics.Config) (*MetricsPool, error) {
	mp := newMetricsPool(&cfg)
	if err := mp.EnableMetrics(metricsConfig); err != nil {
		return nil, err
	}
	return mp.start(cfg)
}

// NewWithRegistry creates a pool reporting to an existing registry, so
// several pools can share one set of collectors told apart by the pool
// label.
func NewWithRegistry(cfg Config, registry *metrics.Registry) (*MetricsPool, error) {
	if registry == nil {
		return nil, validation.ValidateNotNil("workerpool", "registry", nil)
	}
	mp := newMetricsPool(&cfg)
	mp.registry.Store(registry)
	mp.enabled.Store(true)
	return mp.start(cfg)
}

func newMetricsPool(cfg *Config) *MetricsPool {
	if cfg.Name == "" {
		cfg.Name = cfg.Sizing.String()
	}
	return &MetricsPool{name: cfg.Name}
}

func (mp *MetricsPool) start(cfg Config) (*MetricsPool, error) {
	cfg.Hooks = MergeHooks(cfg.Hooks, mp.hooks())
	pool, err := New(cfg)
	if err != nil {
		return nil, err
	}
	mp.Pool = pool
	mp.updateMetrics()
	return mp, nil
}

func (mp *MetricsPool) hooks() Hooks {
	return Hooks{
		OnTaskSubmitted: func(*task.Task) {
			mp.count(func(r *metrics.Registry) { r.TasksSubmitted.WithLabelValues(mp.name).Inc() })
		},
		OnTaskStarted: func(_ int, t *task.Task) {
			mp.count(func(r *metrics.Registry) {
				r.TasksStarted.WithLabelValues(mp.name).Inc()
				if t.Runs() == 1 {
					r.TaskQueueWait.WithLabelValues(mp.name).Observe(time.Since(t.Submitted()).Seconds())
				}
			})
		},
		OnTaskCompleted: func(res Result) {
			mp.count(func(r *metrics.Registry) {
				r.TasksCompleted.WithLabelValues(mp.name).Inc()
				r.TaskDuration.WithLabelValues(mp.name).Observe(res.Duration.Seconds())
			})
		},
		OnTaskFailed: func(res Result) {
			mp.count(func(r *metrics.Registry) {
				r.TasksFailed.WithLabelValues(mp.name).Inc()
				r.TaskDuration.WithLabelValues(mp.name).Observe(res.Duration.Seconds())
			})
		},
		OnTaskRejected: func(*task.Task, error) {
			mp.count(func(r *metrics.Registry) { r.TasksRejected.WithLabelValues(mp.name).Inc() })
		},
		OnTaskCancelled: func(*task.Task) {
			mp.count(func(r *metrics.Registry) { r.TasksCancelled.WithLabelValues(mp.name).Inc() })
		},
		OnWorkerSpawned: func(int) {
			mp.count(func(r *metrics.Registry) { r.WorkersSpawned.WithLabelValues(mp.name).Inc() })
		},
		OnWorkerRetired: func(int) {
			mp.count(func(r *metrics.Registry) { r.WorkersRetired.WithLabelValues(mp.name).Inc() })
		},
	}
}

// count applies fn to the registry and refreshes the gauges.
func (mp *MetricsPool) count(fn func(r *metrics.Registry)) {
	if !mp.enabled.Load() {
		return
	}
	if r := mp.registry.Load(); r != nil {
		fn(r)
	}
	mp.updateMetrics()
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	r := mp.registry.Load()
	if !mp.enabled.Load() || r == nil || mp.Pool == nil {
		return
	}

	stats := mp.Stats()
	r.WorkersLive.WithLabelValues(mp.name).Set(float64(stats.Live))
	r.WorkersBusy.WithLabelValues(mp.name).Set(float64(stats.Busy))
	r.TasksQueued.WithLabelValues(mp.name).Set(float64(stats.Queued))
	r.TasksScheduled.WithLabelValues(mp.name).Set(float64(stats.Scheduled))
}

// Registry returns the registry metrics are reported to.
func (mp *MetricsPool) Registry() *metrics.Registry {
	return mp.registry.Load()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	mp.enabled.Store(config.Enabled)
	if !config.Enabled {
		return nil
	}

	// The default registerer already carries DefaultRegistry; registering
	// the same vectors twice would panic.
	usesDefault := config.Registry == nil ||
		(config.Registry == prometheus.DefaultRegisterer &&
			(config.Namespace == "" || config.Namespace == metrics.DefaultNamespace) &&
			len(config.Labels) == 0)
	if usesDefault {
		mp.registry.Store(metrics.DefaultRegistry)
	} else {
		mp.registry.Store(metrics.NewRegistryWithConfig(config))
	}

	mp.updateMetrics()
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled.Load()
}
