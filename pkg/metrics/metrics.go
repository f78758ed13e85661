// Package metrics provides Prometheus instrumentation for executor pools.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "executors"

// Registry holds all metric instances for executor pools. Every vector is
// labelled by pool name.
type Registry struct {
	// Task Metrics
	TasksSubmitted *prometheus.CounterVec
	TasksRejected  *prometheus.CounterVec
	TasksStarted   *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksCancelled *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TaskQueueWait  *prometheus.HistogramVec

	// Pool Metrics
	WorkersLive    *prometheus.GaugeVec
	WorkersBusy    *prometheus.GaugeVec
	WorkersSpawned *prometheus.CounterVec
	WorkersRetired *prometheus.CounterVec
	TasksQueued    *prometheus.GaugeVec
	TasksScheduled *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by executor pools.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring the namespace and
// constant labels of cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)
	labels := []string{"pool"}

	counter := func(subsystem, name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}
	gauge := func(subsystem, name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: cfg.Labels,
		}, labels)
	}

	return &Registry{
		TasksSubmitted: counter("tasks", "submitted_total", "Total number of tasks accepted by the pool"),
		TasksRejected:  counter("tasks", "rejected_total", "Total number of tasks refused by the rejection policy"),
		TasksStarted:   counter("tasks", "started_total", "Total number of task runs started"),
		TasksCompleted: counter("tasks", "completed_total", "Total number of task runs that succeeded"),
		TasksFailed:    counter("tasks", "failed_total", "Total number of task runs that failed or panicked"),
		TasksCancelled: counter("tasks", "cancelled_total", "Total number of tasks cancelled before or during a run"),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "tasks",
				Name:        "duration_seconds",
				Help:        "Time spent executing a task run",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			labels,
		),

		TaskQueueWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "tasks",
				Name:        "queue_wait_seconds",
				Help:        "Time between submission and the first run of a task",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			labels,
		),

		WorkersLive:    gauge("workers", "live", "Number of live workers"),
		WorkersBusy:    gauge("workers", "busy", "Number of workers executing a task"),
		WorkersSpawned: counter("workers", "spawned_total", "Total number of workers started"),
		WorkersRetired: counter("workers", "retired_total", "Total number of workers that exited"),
		TasksQueued:    gauge("queue", "length", "Number of tasks waiting in the queue"),
		TasksScheduled: gauge("scheduler", "pending", "Number of delayed or periodic tasks waiting for their due time"),
	}
}
