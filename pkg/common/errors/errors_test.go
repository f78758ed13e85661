package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrClosed, "resource is closed"},
		{ErrCapacityExceeded, "capacity exceeded"},
		{ErrInvalidConfiguration, "invalid configuration"},
		{ErrRejected, "task rejected"},
		{ErrCancelled, "task cancelled"},
		{ErrExecutionFailed, "task execution failed"},
		{ErrShutdownInProgress, "shutdown in progress"},
		{ErrTimedOut, "operation timed out"},
	}
	for _, tt := range tests {
		assert.EqualError(t, tt.err, tt.want)
	}
	assert.Same(t, ErrTimeout, ErrTimedOut)
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "without hint",
			err:  NewValidationError("workerpool", "CoreWorkers", -1, "must be between 0 and MaxWorkers (4)"),
			want: "workerpool: invalid CoreWorkers=-1 (must be between 0 and MaxWorkers (4))",
		},
		{
			name: "with hint",
			err: NewValidationError("workerpool", "RejectionHandler", nil, "required by the custom rejection policy").
				WithHint("provide a RejectionHandler"),
			want: "workerpool: invalid RejectionHandler=<nil> (required by the custom rejection policy) - provide a RejectionHandler",
		},
		{
			name: "string value",
			err:  NewValidationError("scheduler", "cron expression", "", "cannot be empty"),
			want: "scheduler: invalid cron expression= (cannot be empty)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.want)
			assert.ErrorIs(t, tt.err, ErrInvalidConfiguration)
			assert.True(t, IsValidationError(fmt.Errorf("new pool: %w", tt.err)))
		})
	}

	err := NewValidationError("workerpool", "MaxWorkers", 0, "must be positive")
	assert.Same(t, err, err.WithHint("use a value greater than 0"), "WithHint chains on the same error")
	assert.False(t, IsValidationError(ErrInvalidConfiguration))
}

func TestOperationError(t *testing.T) {
	cause := fmt.Errorf("%w: %w", ErrTimedOut, context.DeadlineExceeded)
	err := NewOperationError("workerpool", "shutdown", cause).WithContext("3 workers still running")

	assert.EqualError(t, err, "workerpool.shutdown failed: operation timed out: context deadline exceeded (3 workers still running)")
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var opErr *OperationError
	require.ErrorAs(t, fmt.Errorf("stop: %w", err), &opErr)
	assert.Equal(t, "shutdown", opErr.Operation)

	plain := NewOperationError("queue", "Offer", ErrCapacityExceeded)
	assert.EqualError(t, plain, "queue.Offer failed: capacity exceeded")
}

func TestTaskError(t *testing.T) {
	cause := errors.New("disk full")
	err := &TaskError{TaskID: "abc", Cause: cause}

	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "task abc: task execution failed: disk full")
	assert.False(t, IsPanic(err))
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestTaskError_TimedOut(t *testing.T) {
	cause := fmt.Errorf("%w after 10ms: %w", ErrTimedOut, context.DeadlineExceeded)
	err := &TaskError{TaskID: "slow", Cause: cause}

	assert.ErrorIs(t, err, ErrExecutionFailed)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsPanic(t *testing.T) {
	perr := &PanicError{Value: "boom", Stack: []byte("goroutine 1")}
	wrapped := &TaskError{TaskID: "t1", Cause: perr}

	assert.True(t, IsPanic(wrapped), "IsPanic sees through TaskError")
	assert.True(t, IsPanic(fmt.Errorf("await: %w", wrapped)))
	assert.False(t, IsPanic(errors.New("boom")))
	assert.Contains(t, perr.Error(), "boom")
	assert.Contains(t, perr.Error(), "goroutine 1")
}
