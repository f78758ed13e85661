package task

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gferrors "github.com/vnykmshr/executors/pkg/common/errors"
)

// Future is the result handle of a task. It resolves exactly once, with a
// value or an error, and is safe for concurrent use.
type Future struct {
	task     *Task
	done     chan struct{}
	resolved atomic.Bool
	value    any
	err      error
}

func (f *Future) resolve(value any, err error) bool {
	if !f.resolved.CompareAndSwap(false, true) {
		return false
	}
	f.value = value
	f.err = err
	close(f.done)
	return true
}

// ID returns the identifier of the underlying task.
func (f *Future) ID() ID { return f.task.id }

// State returns the state of the underlying task.
func (f *Future) State() State { return f.task.State() }

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Resolved reports whether a result is available.
func (f *Future) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Cancel cancels the underlying task. See Task.Cancel.
func (f *Future) Cancel() bool { return f.task.Cancel() }

// Await blocks until the future resolves or timeout elapses. A timeout of
// zero or less waits indefinitely. On timeout the error matches ErrTimedOut.
func (f *Future) Await(timeout time.Duration) (any, error) {
	if timeout <= 0 {
		<-f.done
		return f.value, f.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.value, f.err
	case <-timer.C:
		return nil, fmt.Errorf("awaiting task %s after %v: %w", f.task.id, timeout, gferrors.ErrTimedOut)
	}
}

// AwaitContext blocks until the future resolves or ctx is done.
func (f *Future) AwaitContext(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, fmt.Errorf("awaiting task %s: %w: %w", f.task.id, gferrors.ErrTimedOut, ctx.Err())
	}
}

// AwaitAs awaits f and asserts the produced value to T.
func AwaitAs[T any](f *Future, timeout time.Duration) (T, error) {
	var zero T
	v, err := f.Await(timeout)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("task %s produced %T, want %T", f.task.id, v, zero)
	}
	return typed, nil
}
