/*
Package workerpool provides worker pools with pluggable sizing, queueing and
rejection policies, plus delayed, periodic and cron execution.

A pool owns a queue and a registry of workers. Submitting work follows four
steps: start a new worker while the pool is below its core size; otherwise
offer the task to the queue; otherwise start a worker while below the
maximum size; otherwise apply the rejection policy.

Basic usage:

	pool := workerpool.NewFixed(4)
	defer pool.Shutdown(true)

	future, err := pool.Submit(task.Func(func(ctx context.Context) (any, error) {
		return fetch(ctx, url)
	}))
	if err != nil {
		log.Printf("Failed to submit: %v", err)
	}

	body, err := future.Await(5 * time.Second)

Sizing Policies:

	workerpool.NewFixed(n)           // n workers, unbounded FIFO queue
	workerpool.NewCached()           // grows on demand, idle workers retire after 60s
	workerpool.NewSingle()           // one worker, strict submission order
	workerpool.NewScheduled(n)       // n workers over a priority/delay queue
	workerpool.NewSingleScheduled()  // one worker over a priority/delay queue
	workerpool.NewWorkStealing(n)    // per-worker deques, no ordering guarantee

Everything else is available through Config with Custom sizing:

	pool, err := workerpool.New(workerpool.Config{
		Name:          "ingest",
		Sizing:        workerpool.Custom,
		CoreWorkers:   2,
		MaxWorkers:    8,
		IdleTimeout:   30 * time.Second,
		QueueKind:     queue.FIFO,
		QueueCapacity: 100,
		Rejection:     workerpool.CallerRuns,
		TaskTimeout:   10 * time.Second,
	})

Rejection Policies:

When the queue is full and the pool is at its maximum size:

  - Abort returns an error matching ErrRejected
  - CallerRuns runs the task on the submitting goroutine
  - DiscardOldest evicts the head of the queue and enqueues the new task
  - Discard drops the new task; its future resolves with ErrRejected
  - CustomRejection calls Config.RejectionHandler, which may use RunInline

Delayed and Periodic Work:

	pool.Schedule(work, 2*time.Second)
	pool.ScheduleAtFixedRate(work, 0, time.Minute)
	pool.ScheduleCron("0 0/5 * * * *", work)

Runs of a periodic task never overlap. Its future resolves only when the
task is cancelled or the pool shuts down; individual runs are reported
through Hooks.

Errors:

Futures resolve with errors matching the sentinels of the errors package:
ErrExecutionFailed (wrapping the cause, or a PanicError), ErrCancelled,
ErrRejected and ErrShutdownInProgress. Work functions must watch ctx.Done()
to be interruptible.

Observability:

Hooks receive task and worker events. LoggingHooks writes them to a zap
logger and NewWithMetrics exports them to Prometheus:

	pool, err := workerpool.NewWithMetrics(workerpool.Config{
		Sizing: workerpool.Fixed,
		Hooks:  workerpool.LoggingHooks(logger),
	}, metrics.DefaultConfig())

Graceful Shutdown:

	// Finish queued work, cancel delayed work, wait up to ShutdownTimeout
	err := pool.Shutdown(true)

	// Cancel queued work and interrupt running tasks
	err := pool.Shutdown(false)

Thread Safety:

All pool operations are safe for concurrent use from multiple goroutines.
*/
package workerpool
