/*
Package taskflow provides a cooperative task-execution runtime for Go:
typed channels, bounded worker pools, composable pipelines, fan-out/fan-in,
hierarchical cancellation scopes, and the synchronization primitives they
are built from.

Runtime (pkg/runtime):
  - channel: typed, closable handoff queues with rendezvous (capacity 0)
    and buffered modes
  - scope: hierarchical cancellation with deadlines, usable anywhere a
    context.Context is accepted
  - syncx: mutex, reader/writer lock, once, completion counter
  - task: the unit of submitted work and its result

Scheduling (pkg/scheduling):
  - workerpool: bounded concurrent task execution with result delivery
  - pipeline: multi-stage channel-to-channel processing
  - scheduler: cron and interval submission of recurring tasks

Streaming (pkg/streaming):
  - fanio: fan-out of one channel across workers, fan-in of many
    channels into one

Admission control (pkg/limit):
  - semaphore: in-process concurrency permits
  - distributed: Redis-coordinated permits across instances

Example usage:

	import (
		"github.com/vnykmshr/taskflow/pkg/runtime/scope"
		"github.com/vnykmshr/taskflow/pkg/runtime/task"
		"github.com/vnykmshr/taskflow/pkg/scheduling/workerpool"
	)

	sc := scope.WithTimeout(nil, 5*time.Second)
	defer sc.Cancel()

	pool := workerpool.New(4, func(ctx context.Context, t task.Task) (any, error) {
		return process(ctx, t.Payload)
	})

	pool.SubmitWithContext(sc, task.New(payload))
	<-pool.Shutdown()
*/
package taskflow
