// Package runner drives configured pool profiles with a synthetic
// workload and reports what happened.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vnykmshr/executors/internal/config"
	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/metrics"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
	"github.com/vnykmshr/executors/pkg/scheduling/workerpool"
)

// Report summarises one profile run.
type Report struct {
	Pool         string
	Submitted    int64
	Completed    int64
	Failed       int64
	Rejected     int64
	Cancelled    int64
	PeriodicRuns int64
	Elapsed      time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("%s: submitted=%d completed=%d failed=%d rejected=%d cancelled=%d periodic-runs=%d elapsed=%v",
		r.Pool, r.Submitted, r.Completed, r.Failed, r.Rejected, r.Cancelled, r.PeriodicRuns, r.Elapsed.Round(time.Millisecond))
}

// Runner executes profiles. The zero value discards its transcript and
// logs nothing.
type Runner struct {
	// Out receives one line per finished task.
	Out io.Writer
	// Logger receives pool diagnostics and task events.
	Logger *zap.Logger
	// Registry, when set, exports pool metrics.
	Registry *metrics.Registry

	mu sync.Mutex
}

// Run builds the pool of profile, submits its workload, waits for it and
// shuts the pool down gracefully. Cancelling ctx stops the pool without
// waiting for queued work.
func (r *Runner) Run(ctx context.Context, profile config.Pool) (Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	w := profile.Workload

	periodic := newRunWatch(w.Runs)
	cfg := profile.PoolConfig(logger)
	cfg.Hooks = workerpool.MergeHooks(
		workerpool.LoggingHooks(logger),
		workerpool.Hooks{
			OnTaskCompleted: func(res workerpool.Result) {
				r.printf("%s: task %s finished on %s after %v\n",
					profile.Name, shortID(res.Task.ID()), workerName(res.WorkerID), res.Duration.Round(time.Millisecond))
				periodic.observe(res.Task)
			},
			OnTaskFailed: func(res workerpool.Result) {
				r.printf("%s: task %s failed on %s: %v\n",
					profile.Name, shortID(res.Task.ID()), workerName(res.WorkerID), res.Err)
				periodic.observe(res.Task)
			},
		},
	)

	pool, err := r.newPool(cfg)
	if err != nil {
		return Report{Pool: profile.Name}, err
	}

	work := sleeper(w.Duration)
	var futures []*task.Future
	for i := 0; i < w.Tasks; i++ {
		var f *task.Future
		if w.Delay > 0 {
			f, err = pool.Schedule(work, w.Delay)
		} else {
			f, err = pool.SubmitWithContext(ctx, work)
		}
		switch {
		case errors.Is(err, gferrors.ErrRejected):
			r.printf("%s: task %d rejected\n", profile.Name, i+1)
		case err != nil:
			_ = pool.Shutdown(false)
			return Report{Pool: profile.Name}, fmt.Errorf("submit to %s: %w", profile.Name, err)
		default:
			futures = append(futures, f)
		}
	}

	var repeating []*task.Future
	if w.Period > 0 {
		f, err := pool.ScheduleAtFixedRate(work, w.Delay, w.Period)
		if err != nil {
			_ = pool.Shutdown(false)
			return Report{Pool: profile.Name}, err
		}
		repeating = append(repeating, f)
	}
	if w.Cron != "" {
		f, err := pool.ScheduleCron(w.Cron, work)
		if err != nil {
			_ = pool.Shutdown(false)
			return Report{Pool: profile.Name}, err
		}
		repeating = append(repeating, f)
	}

	runErr := r.wait(ctx, futures, repeating, periodic)
	graceful := runErr == nil
	if err := pool.Shutdown(graceful); err != nil && runErr == nil {
		runErr = err
	}

	stats := pool.Stats()
	return Report{
		Pool:         profile.Name,
		Submitted:    stats.Submitted,
		Completed:    stats.Completed,
		Failed:       stats.Failed,
		Rejected:     stats.Rejected,
		Cancelled:    stats.Cancelled,
		PeriodicRuns: periodic.total(),
		Elapsed:      time.Since(start),
	}, runErr
}

func (r *Runner) newPool(cfg workerpool.Config) (*workerpool.Pool, error) {
	if r.Registry == nil {
		return workerpool.New(cfg)
	}
	mp, err := workerpool.NewWithRegistry(cfg, r.Registry)
	if err != nil {
		return nil, err
	}
	return mp.Pool, nil
}

// wait blocks until every one-shot future resolved and every periodic task
// ran its quota, then cancels the periodic tasks.
func (r *Runner) wait(ctx context.Context, futures, repeating []*task.Future, periodic *runWatch) error {
	for _, f := range futures {
		if _, err := f.AwaitContext(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if len(repeating) > 0 {
		for _, f := range repeating {
			periodic.track(f.ID())
		}
		select {
		case <-periodic.done():
		case <-ctx.Done():
			return ctx.Err()
		}
		for _, f := range repeating {
			f.Cancel()
		}
	}
	return nil
}

func (r *Runner) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, format, args...)
}

// sleeper returns work that takes d unless cancelled.
func sleeper(d time.Duration) task.Work {
	return task.Action(func(ctx context.Context) error {
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func workerName(id int) string {
	if id < 0 {
		return "caller"
	}
	return fmt.Sprintf("worker-%d", id)
}

func shortID(id task.ID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
