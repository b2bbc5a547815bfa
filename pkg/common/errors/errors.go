// Package errors defines the error taxonomy shared across taskflow components.
package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the taskflow library

var (
	// ErrChannelClosed indicates a send was attempted on a closed channel.
	ErrChannelClosed = errors.New("channel is closed")

	// ErrAlreadyClosed indicates Close was called on an already closed resource.
	ErrAlreadyClosed = errors.New("already closed")

	// ErrCancelled indicates a blocking operation observed scope cancellation.
	ErrCancelled = errors.New("scope cancelled")

	// ErrDeadlineExceeded indicates a blocking operation observed scope
	// deadline expiry. Distinguishable from manual cancellation.
	ErrDeadlineExceeded = errors.New("scope deadline exceeded")

	// ErrTaskFailure indicates a task body returned an error or panicked.
	// It is carried inside a Result, never raised into pool control flow.
	ErrTaskFailure = errors.New("task failed")

	// ErrInvalidState indicates programming misuse, e.g. a completion
	// counter underflow. Callers should treat it as fatal.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidConfiguration indicates invalid configuration parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDeadlineExceeded) || errors.Is(err, ErrTaskFailure)
}

// IsTaskFailure returns true if the error originated inside a task body.
func IsTaskFailure(err error) bool {
	return errors.Is(err, ErrTaskFailure)
}

// ValidationError describes a rejected configuration value.
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

// Unwrap makes ValidationError match ErrInvalidConfiguration via errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// OperationError describes a failed operation with its module and cause.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
}

// NewOperationError creates an OperationError wrapping cause.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// WithContext attaches extra context and returns the same error for chaining.
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

// TaskError wraps an error (or recovered panic) raised by a task body.
// It is delivered inside a Result so one failing task never aborts
// sibling tasks or the pool itself.
type TaskError struct {
	TaskID string
	Cause  error
	Panic  interface{}
}

// NewTaskError wraps a task body error.
func NewTaskError(taskID string, cause error) *TaskError {
	return &TaskError{TaskID: taskID, Cause: cause}
}

// NewTaskPanic wraps a recovered panic value from a task body.
func NewTaskPanic(taskID string, recovered interface{}) *TaskError {
	return &TaskError{
		TaskID: taskID,
		Cause:  fmt.Errorf("task panicked: %v", recovered),
		Panic:  recovered,
	}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Cause)
}

// Unwrap makes TaskError match ErrTaskFailure and the original cause.
func (e *TaskError) Unwrap() []error {
	return []error{ErrTaskFailure, e.Cause}
}
