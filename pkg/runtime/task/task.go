// Package task defines the unit of work flowing through the taskflow
// runtime and the result produced when it completes.
package task

import (
	"time"

	"github.com/google/uuid"
)

// Task is a unit of submitted work. A Task is immutable after creation
// and has a single owner: whichever stage currently holds it. Ownership
// transfers on every channel send, so payloads are never shared mutable
// state between concurrent units.
type Task struct {
	// ID is an opaque identifier, unique per task.
	ID string

	// Payload is the caller-supplied input value.
	Payload any

	// ProducedAt records when the task was created.
	ProducedAt time.Time
}

// New creates a task with a generated ID and the current timestamp.
func New(payload any) Task {
	return Task{
		ID:         uuid.NewString(),
		Payload:    payload,
		ProducedAt: time.Now(),
	}
}

// Result is the outcome of executing one task. A failing task delivers
// its error here as data; it is never raised into pool control flow.
type Result struct {
	// TaskID identifies the task this result belongs to.
	TaskID string

	// Value is the value produced by the task body, nil on failure.
	Value any

	// Err is the task body's error (wrapped as a TaskError), nil on success.
	Err error

	// Duration is how long the task body ran.
	Duration time.Duration

	// WorkerID identifies the pool worker that executed the task.
	WorkerID int
}

// Failed reports whether the task body returned an error or panicked.
func (r Result) Failed() bool {
	return r.Err != nil
}
