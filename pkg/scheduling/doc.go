/*
Package scheduling provides task execution primitives for Go applications.

This package groups the components of a worker pool engine:

  - task: Units of work, their lifecycle states and single-resolution futures
  - queue: Blocking queues handed to pool workers
  - scheduler: Time-based promotion of delayed and periodic tasks
  - workerpool: Pools combining the three under a sizing and rejection policy

Worker Pool:

The worker pool provides controlled concurrent execution:

	pool := workerpool.NewFixed(4)
	defer pool.Shutdown(true)

	future, err := pool.Submit(task.Action(func(ctx context.Context) error {
		// Do work
		return nil
	}))
	_, err = future.Await(time.Second)

Scheduled Execution:

Scheduled pools order their queue by due time, then priority:

	pool := workerpool.NewScheduled(2)

	// One-time task
	pool.Schedule(work, time.Minute)

	// Recurring task
	pool.ScheduleAtFixedRate(work, 0, time.Hour)

	// Cron-style scheduling, six fields with seconds
	pool.ScheduleCron("0 0 9 * * MON-FRI", work) // Weekdays at 9 AM

All components are safe for concurrent use and honour context cancellation.
*/
package scheduling
