package workerpool

import (
	"context"
	"time"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/task"
)

// Submit adds a task to the pool for execution, blocking while the input
// channel is full. Use SubmitWithContext to bound the wait.
func (p *workerPool) Submit(t task.Task) error {
	return p.SubmitWithContext(context.Background(), t)
}

// SubmitWithContext adds a task to the pool for execution with the given
// context. The context bounds the queuing operation only; task execution
// is bounded by Config.TaskTimeout.
func (p *workerPool) SubmitWithContext(ctx context.Context, t task.Task) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Deterministic answer for a pool that is already shutting down,
	// before racing the channel.
	if p.isShutdown.Load() {
		return tferrors.NewOperationError("workerpool", "Submit", tferrors.ErrChannelClosed).
			WithContext("pool has been shut down")
	}

	if err := p.input.Send(ctx, t); err != nil {
		return tferrors.NewOperationError("workerpool", "Submit", err)
	}
	p.totalSubmitted.Add(1)
	return nil
}

// Results returns the channel of task results.
func (p *workerPool) Results() *channel.Channel[task.Result] {
	return p.output
}

// Shutdown initiates a graceful shutdown of the pool.
func (p *workerPool) Shutdown() <-chan struct{} {
	p.shutdownOnce.Do(func() {
		p.isShutdown.Store(true)
		_ = p.input.Close()

		go func() {
			// The results channel closes only after every worker has
			// exited, making its close a reliable all-work-done signal.
			p.workers.Wait()
			_ = p.output.Close()
			close(p.shutdownDone)
		}()
	})

	return p.shutdownDone
}

// Size returns the number of workers in the pool.
func (p *workerPool) Size() int {
	return p.config.Size
}

// QueueSize returns the current number of queued tasks waiting for execution.
func (p *workerPool) QueueSize() int {
	return p.input.Len()
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (p *workerPool) ActiveWorkers() int {
	return int(p.activeWorkers.Load())
}

// TotalSubmitted returns the total number of tasks submitted to the pool.
func (p *workerPool) TotalSubmitted() int64 {
	return p.totalSubmitted.Load()
}

// TotalCompleted returns the total number of tasks completed by the pool.
func (p *workerPool) TotalCompleted() int64 {
	return p.totalCompleted.Load()
}

// runWorker is the main loop for one worker.
func (p *workerPool) runWorker(id int) {
	defer p.workers.Done()

	if p.config.OnWorkerStart != nil {
		p.config.OnWorkerStart(id)
	}
	if p.config.OnWorkerStop != nil {
		defer p.config.OnWorkerStop(id)
	}

	for {
		t, ok, err := p.input.Receive(context.Background())
		if err != nil || !ok {
			// Input closed and drained: shutdown.
			return
		}
		p.executeTask(id, t)
	}
}

// executeTask runs one task and delivers its Result, capturing errors
// and panics so a failing task never crashes sibling workers.
func (p *workerPool) executeTask(id int, t task.Task) {
	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	start := time.Now()
	var value any
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = tferrors.NewTaskPanic(t.ID, r)
				value = nil
			}
		}()

		ctx := context.Background()
		if p.config.TaskTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.config.TaskTimeout)
			defer cancel()
		}

		value, err = p.config.Handler(ctx, t)
		if err != nil {
			err = tferrors.NewTaskError(t.ID, err)
			value = nil
		}
	}()

	result := task.Result{
		TaskID:   t.ID,
		Value:    value,
		Err:      err,
		Duration: time.Since(start),
		WorkerID: id,
	}

	p.totalCompleted.Add(1)
	if p.config.OnTaskComplete != nil {
		p.config.OnTaskComplete(id, result)
	}

	// Delivery blocks until the consumer takes the result; results are
	// never dropped. The output cannot be closed before this worker exits.
	_ = p.output.Send(context.Background(), result)
}
