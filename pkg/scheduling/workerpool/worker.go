package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	gfcontext "github.com/vnykmshr/executors/pkg/common/context"
	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
	"github.com/vnykmshr/executors/pkg/scheduling/task"
)

// worker represents a single worker in the pool.
type worker struct {
	id   int
	slot int
	pool *Pool
}

// run is the main loop for a worker.
func (w *worker) run(first *task.Task) {
	p := w.pool
	defer func() {
		p.hooks.workerRetired(w.id)
		p.logger.Debug("worker retired", zap.Int("worker_id", w.id))
	}()

	t := first
	for {
		if t == nil {
			var ok bool
			if t, ok = w.take(); !ok {
				return
			}
		}
		if p.runTask(t, w.id) {
			p.reschedule(t)
		}
		t = nil
	}
}

// take blocks for the next task. Workers above the core size give up after
// IdleTimeout and retire; take reports false once the worker is
// deregistered.
func (w *worker) take() (*task.Task, bool) {
	p := w.pool
	for {
		ctx, cancel := context.Background(), context.CancelFunc(func() {})
		if p.LiveWorkers() > p.cfg.CoreWorkers {
			ctx, cancel = context.WithTimeout(ctx, p.cfg.IdleTimeout)
		}

		var t *task.Task
		var err error
		if p.stealing != nil {
			t, err = p.stealing.TakeFor(ctx, w.slot)
		} else {
			t, err = p.queue.Take(ctx)
		}
		cancel()

		switch {
		case err == nil:
			return t, true
		case errors.Is(err, gferrors.ErrClosed):
			p.removeWorker(w, false)
			return nil, false
		default:
			if p.removeWorker(w, true) {
				return nil, false
			}
		}
	}
}

// runTask executes one run of t and records its outcome. It reports
// whether t is periodic and must go back to the scheduler.
func (p *Pool) runTask(t *task.Task, workerID int) bool {
	if t.Context().Err() != nil {
		// The submitter gave up while the task was waiting.
		t.Cancel()
		return false
	}
	if !t.Start() {
		return false
	}

	p.busy.Add(1)
	defer p.busy.Add(-1)

	p.hooks.taskStarted(workerID, t)
	start := time.Now()
	value, err := p.invoke(t)
	result := Result{Task: t, Value: value, Err: err, Duration: time.Since(start), WorkerID: workerID}

	if t.Periodic() && !errors.Is(err, gferrors.ErrCancelled) {
		p.record(result)
		if t.Exhausted() {
			// The last activation resolves the future with its result.
			if !t.Finish(value, err) {
				p.cancelled.Add(1)
				p.hooks.taskCancelled(t)
			}
			return false
		}
		if t.Rearm() {
			return true
		}
		p.cancelled.Add(1)
		p.hooks.taskCancelled(t)
		return false
	}

	if !t.Finish(value, err) {
		p.cancelled.Add(1)
		p.hooks.taskCancelled(t)
		return false
	}
	p.record(result)
	return false
}

func (p *Pool) record(r Result) {
	switch {
	case r.Err == nil:
		p.completed.Add(1)
	case errors.Is(r.Err, gferrors.ErrCancelled):
		p.cancelled.Add(1)
		p.hooks.taskCancelled(r.Task)
		return
	default:
		p.failed.Add(1)
	}
	p.hooks.taskFinished(r)
}

// invoke calls the work function with panic recovery and the per-run
// timeout, and classifies the error.
func (p *Pool) invoke(t *task.Task) (value any, err error) {
	ctx := t.Context()
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.String("task_id", string(t.ID())),
				zap.Any("panic", r))
			if p.cfg.PanicHandler != nil {
				p.cfg.PanicHandler(t, r)
			}
			value = nil
			err = &gferrors.TaskError{
				TaskID: string(t.ID()),
				Cause:  &gferrors.PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()

	value, err = t.Work().Execute(ctx)
	return value, p.classify(t, ctx, err)
}

func (p *Pool) classify(t *task.Task, runCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if gfcontext.StoppedBy(t.Context(), err) {
		return fmt.Errorf("task %s: %w", t.ID(), gferrors.ErrCancelled)
	}
	if errors.Is(err, context.DeadlineExceeded) && gfcontext.IsTimedOut(runCtx) && t.Context().Err() == nil {
		err = fmt.Errorf("%w after %v: %w", gferrors.ErrTimedOut, p.cfg.TaskTimeout, err)
	}
	return &gferrors.TaskError{TaskID: string(t.ID()), Cause: err}
}
