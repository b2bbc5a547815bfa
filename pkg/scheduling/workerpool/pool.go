package workerpool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/syncx"
	"github.com/vnykmshr/taskflow/pkg/runtime/task"
)

// Handler executes one task and returns its value. Errors and panics are
// captured into the task's Result at the pool boundary.
type Handler func(ctx context.Context, t task.Task) (any, error)

// Pool executes submitted tasks on a fixed set of concurrent workers.
type Pool interface {
	// Submit enqueues a task for execution, blocking while the input
	// channel is full. Returns ErrChannelClosed after Shutdown.
	Submit(t task.Task) error

	// SubmitWithContext enqueues a task, giving up when ctx is cancelled.
	// The context applies to the queuing operation, not task execution.
	SubmitWithContext(ctx context.Context, t task.Task) error

	// Results returns the channel of task results. It is closed when the
	// pool has shut down and every in-flight task has completed.
	Results() *channel.Channel[task.Result]

	// Shutdown closes the input channel and returns a channel that is
	// closed once all workers have drained and exited. Idempotent.
	Shutdown() <-chan struct{}

	// Size returns the number of workers in the pool.
	Size() int

	// QueueSize returns the number of tasks waiting in the input channel.
	QueueSize() int

	// ActiveWorkers returns the number of workers currently executing tasks.
	ActiveWorkers() int

	// TotalSubmitted returns the total number of tasks submitted.
	TotalSubmitted() int64

	// TotalCompleted returns the total number of tasks completed.
	TotalCompleted() int64
}

// Config holds configuration options for creating a worker pool.
type Config struct {
	// Size is the number of workers. Must be greater than 0.
	Size int

	// Handler executes each task. Must not be nil.
	Handler Handler

	// QueueCapacity is the input channel capacity. 0 means every Submit
	// rendezvouses with a worker. Defaults to Size when negative.
	QueueCapacity int

	// ResultCapacity is the results channel capacity. Defaults to Size
	// when negative.
	ResultCapacity int

	// TaskTimeout bounds each task execution. Zero means no timeout.
	TaskTimeout time.Duration

	// OnWorkerStart is called when a worker starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called when a worker exits.
	OnWorkerStop func(workerID int)

	// OnTaskComplete is called after a task completes (success or failure),
	// before its Result is delivered.
	OnTaskComplete func(workerID int, r task.Result)
}

// workerPool implements the Pool interface.
type workerPool struct {
	config Config

	input  *channel.Channel[task.Task]
	output *channel.Channel[task.Result]

	workers      *syncx.CompletionCounter
	shutdownOnce *syncx.Once
	shutdownDone chan struct{}

	isShutdown     atomic.Bool
	activeWorkers  atomic.Int32
	totalSubmitted atomic.Int64
	totalCompleted atomic.Int64
}

// New creates a pool of size workers executing handler. It panics on an
// invalid size or nil handler; use NewWithConfig to handle configuration
// errors instead.
func New(size int, handler Handler) Pool {
	p, err := NewWithConfig(Config{Size: size, Handler: handler, QueueCapacity: -1, ResultCapacity: -1})
	if err != nil {
		panic(err)
	}
	return p
}

// NewWithConfig creates a pool with the specified configuration.
func NewWithConfig(config Config) (Pool, error) {
	if err := validation.ValidatePositive("workerpool", "size", config.Size); err != nil {
		return nil, err
	}
	if config.Handler == nil {
		return nil, validation.ValidateNotNil("workerpool", "handler", nil)
	}
	if config.QueueCapacity < 0 {
		config.QueueCapacity = config.Size
	}
	if config.ResultCapacity < 0 {
		config.ResultCapacity = config.Size
	}

	p := &workerPool{
		config:       config,
		input:        channel.New[task.Task](config.QueueCapacity),
		output:       channel.New[task.Result](config.ResultCapacity),
		workers:      syncx.NewCompletionCounter(),
		shutdownOnce: syncx.NewOnce(),
		shutdownDone: make(chan struct{}),
	}

	p.workers.Add(config.Size)
	for i := 0; i < config.Size; i++ {
		go p.runWorker(i)
	}

	return p, nil
}
