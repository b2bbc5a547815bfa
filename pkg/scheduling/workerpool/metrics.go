package workerpool

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
	"github.com/vnykmshr/taskflow/pkg/runtime/task"
)

// MetricsPool wraps a worker Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
	enabled  bool
}

// NewWithMetrics creates a worker pool reporting to its own Prometheus
// registry. Each metrics-enabled pool gets a separate registry to avoid
// collector conflicts.
func NewWithMetrics(size int, name string, handler Handler) (Pool, error) {
	registry := prometheus.NewRegistry()
	return NewWithConfigAndMetrics(Config{
		Size:           size,
		Handler:        handler,
		QueueCapacity:  -1,
		ResultCapacity: -1,
	}, name, metrics.Config{Enabled: true, Registry: registry})
}

// NewWithConfigAndMetrics creates a worker pool with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	if !metricsConfig.Enabled {
		return NewWithConfig(config)
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	mp := &MetricsPool{
		name:     name,
		registry: registry,
		enabled:  true,
	}

	// Observe completion from inside the pool so results consumed by the
	// caller still get counted.
	userCallback := config.OnTaskComplete
	config.OnTaskComplete = func(workerID int, r task.Result) {
		mp.observe(r)
		if userCallback != nil {
			userCallback(workerID, r)
		}
	}

	pool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	mp.pool = pool

	mp.registry.WorkerPoolSize.WithLabelValues(mp.name).Set(float64(pool.Size()))
	return mp, nil
}

func (mp *MetricsPool) observe(r task.Result) {
	if !mp.enabled {
		return
	}
	mp.registry.TaskExecutionDuration.WithLabelValues(mp.name).Observe(r.Duration.Seconds())
	if r.Failed() {
		mp.registry.TasksFailed.WithLabelValues(mp.name).Inc()
	} else {
		mp.registry.TasksCompleted.WithLabelValues(mp.name).Inc()
	}
	mp.updateGauges()
}

func (mp *MetricsPool) updateGauges() {
	if !mp.enabled || mp.pool == nil {
		return
	}
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.ActiveWorkers()))
	mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(mp.pool.QueueSize()))
	mp.registry.ObserveChannel(mp.name+"_results", mp.pool.Results().Stats())
}

// Submit adds a task to the pool for execution.
func (mp *MetricsPool) Submit(t task.Task) error {
	return mp.SubmitWithContext(context.Background(), t)
}

// SubmitWithContext submits a task with a context bounding the queuing wait.
func (mp *MetricsPool) SubmitWithContext(ctx context.Context, t task.Task) error {
	err := mp.pool.SubmitWithContext(ctx, t)
	if err == nil && mp.enabled {
		mp.registry.TasksSubmitted.WithLabelValues(mp.name).Inc()
		mp.updateGauges()
	}
	return err
}

// Results returns the channel of task results.
func (mp *MetricsPool) Results() *channel.Channel[task.Result] {
	return mp.pool.Results()
}

// Shutdown initiates graceful shutdown of the pool.
func (mp *MetricsPool) Shutdown() <-chan struct{} {
	return mp.pool.Shutdown()
}

// Size returns the number of workers.
func (mp *MetricsPool) Size() int {
	return mp.pool.Size()
}

// QueueSize returns the current number of queued tasks.
func (mp *MetricsPool) QueueSize() int {
	n := mp.pool.QueueSize()
	if mp.enabled {
		mp.registry.WorkerPoolQueued.WithLabelValues(mp.name).Set(float64(n))
	}
	return n
}

// ActiveWorkers returns the number of workers currently executing tasks.
func (mp *MetricsPool) ActiveWorkers() int {
	n := mp.pool.ActiveWorkers()
	if mp.enabled {
		mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(n))
	}
	return n
}

// TotalSubmitted returns the total number of tasks submitted.
func (mp *MetricsPool) TotalSubmitted() int64 {
	return mp.pool.TotalSubmitted()
}

// TotalCompleted returns the total number of tasks completed.
func (mp *MetricsPool) TotalCompleted() int64 {
	return mp.pool.TotalCompleted()
}

// EnableMetrics enables metrics collection.
func (mp *MetricsPool) EnableMetrics(config metrics.Config) error {
	mp.enabled = config.Enabled
	if config.Registry != nil {
		mp.registry = metrics.NewRegistry(config.Registry)
	}
	if mp.enabled {
		mp.updateGauges()
	}
	return nil
}

// DisableMetrics disables metrics collection.
func (mp *MetricsPool) DisableMetrics() {
	mp.enabled = false
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mp *MetricsPool) MetricsEnabled() bool {
	return mp.enabled
}
