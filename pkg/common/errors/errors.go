package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the executors library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrRejected indicates that a submission was refused by the rejection policy
	ErrRejected = errors.New("task rejected")

	// ErrCancelled indicates that a task was removed before or during execution
	ErrCancelled = errors.New("task cancelled")

	// ErrExecutionFailed indicates that the work function returned an error or panicked
	ErrExecutionFailed = errors.New("task execution failed")

	// ErrShutdownInProgress indicates a submission after shutdown was initiated
	ErrShutdownInProgress = errors.New("shutdown in progress")

	// ErrTimedOut is returned when waiting on a result exceeds the caller's budget.
	ErrTimedOut = ErrTimeout
)

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError for the given module and field.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError describes a failed operation of a module.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError wraps cause with the module and operation that produced it.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra detail and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// TaskError carries the failure of a single task execution. It matches
// ErrExecutionFailed as well as its cause.
type TaskError struct {
	TaskID string
	Cause  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v: %v", e.TaskID, ErrExecutionFailed, e.Cause)
}

func (e *TaskError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Cause}
}

// PanicError records a value recovered from a panicking work function.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v\nStack trace:\n%s", e.Value, e.Stack)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsPanic reports whether err carries a recovered panic.
func IsPanic(err error) bool {
	var perr *PanicError
	return errors.As(err, &perr)
}
