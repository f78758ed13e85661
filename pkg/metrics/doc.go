// Package metrics provides Prometheus instrumentation for executor pools.
//
// # Quick Start
//
// Create an instrumented pool and expose the registry over HTTP:
//
//	pool, err := workerpool.NewWithMetrics(workerpool.Config{
//		Name:        "reports",
//		Sizing:      workerpool.Fixed,
//		CoreWorkers: 4,
//	}, metrics.DefaultConfig())
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	pool, err := workerpool.NewWithMetrics(cfg, metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	})
//
// # Available Metrics
//
// Every metric carries a "pool" label with the pool name.
//
//   - executors_tasks_submitted_total: tasks accepted by the pool
//   - executors_tasks_rejected_total: tasks refused by the rejection policy
//   - executors_tasks_started_total: task runs started
//   - executors_tasks_completed_total: task runs that succeeded
//   - executors_tasks_failed_total: task runs that failed or panicked
//   - executors_tasks_cancelled_total: tasks cancelled before or during a run
//   - executors_tasks_duration_seconds: time spent executing a run
//   - executors_tasks_queue_wait_seconds: time from submission to first run
//   - executors_workers_live: live workers
//   - executors_workers_busy: workers executing a task
//   - executors_workers_spawned_total / executors_workers_retired_total
//   - executors_queue_length: tasks waiting in the queue
//   - executors_scheduler_pending: delayed or periodic tasks not yet due
//
// # Configuration
//
//	config := metrics.Config{
//		Enabled:   true,
//		Registry:  prometheus.DefaultRegisterer,
//		Namespace: "myapp",                            // Override default "executors"
//		Labels:    prometheus.Labels{"version": "1.0"}, // Constant labels
//	}
//
// # Runtime Control
//
// Instrumented pools implement Instrumentable and can stop or resume
// collection at runtime.
package metrics
