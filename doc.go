/*
Package executors provides a Go library for executing tasks on worker pools
with pluggable sizing, queueing and rejection policies.

Task Execution (pkg/scheduling):
  - task: Tasks, work functions and futures
  - queue: FIFO, priority/delay, synchronous and work-stealing queues
  - scheduler: Delayed, fixed-rate and cron scheduling
  - workerpool: Pool controller, sizing and rejection policies, shutdown

Support:
  - metrics: Prometheus instrumentation shared by pools
  - common: Structured errors, validation and context helpers

Example usage:

	import (
		"github.com/vnykmshr/executors/pkg/scheduling/task"
		"github.com/vnykmshr/executors/pkg/scheduling/workerpool"
	)

	pool := workerpool.NewFixed(4)
	defer pool.Shutdown(true)

	future, _ := pool.Submit(task.Func(func(ctx context.Context) (any, error) {
		return 42, nil
	}))
	answer, err := task.AwaitAs[int](future, time.Second)

The executors command (cmd/executors) runs pool profiles from a YAML file and
serves their metrics.
*/
package executors
