package semaphore

import (
	"context"

	"github.com/vnykmshr/taskflow/pkg/metrics"
)

// MetricsSemaphore wraps a Semaphore with Prometheus metrics collection.
type MetricsSemaphore struct {
	sem      Semaphore
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a semaphore reporting to the given metrics
// configuration. With metrics disabled the plain semaphore is returned.
func NewWithMetrics(capacity int, name string, metricsConfig metrics.Config) (Semaphore, error) {
	sem, err := New(capacity)
	if err != nil {
		return nil, err
	}
	if !metricsConfig.Enabled {
		return sem, nil
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}
	return &MetricsSemaphore{sem: sem, name: name, registry: registry}, nil
}

func (ms *MetricsSemaphore) observe() {
	ms.registry.SemaphoreInUse.WithLabelValues(ms.name).Set(float64(ms.sem.InUse()))
	ms.registry.SemaphoreWaiting.WithLabelValues(ms.name).Set(float64(ms.sem.Waiting()))
}

func (ms *MetricsSemaphore) Acquire(ctx context.Context) error {
	return ms.AcquireN(ctx, 1)
}

func (ms *MetricsSemaphore) AcquireN(ctx context.Context, n int) error {
	err := ms.sem.AcquireN(ctx, n)
	if err == nil {
		ms.registry.SemaphoreAcquired.WithLabelValues(ms.name).Add(float64(n))
	}
	ms.observe()
	return err
}

func (ms *MetricsSemaphore) TryAcquire() bool {
	return ms.TryAcquireN(1)
}

func (ms *MetricsSemaphore) TryAcquireN(n int) bool {
	ok := ms.sem.TryAcquireN(n)
	if ok {
		ms.registry.SemaphoreAcquired.WithLabelValues(ms.name).Add(float64(n))
	} else {
		ms.registry.SemaphoreDenied.WithLabelValues(ms.name).Inc()
	}
	ms.observe()
	return ok
}

func (ms *MetricsSemaphore) Release() {
	ms.ReleaseN(1)
}

func (ms *MetricsSemaphore) ReleaseN(n int) {
	ms.sem.ReleaseN(n)
	ms.observe()
}

func (ms *MetricsSemaphore) SetCapacity(capacity int) error {
	return ms.sem.SetCapacity(capacity)
}

func (ms *MetricsSemaphore) Capacity() int { return ms.sem.Capacity() }

func (ms *MetricsSemaphore) Available() int { return ms.sem.Available() }

func (ms *MetricsSemaphore) InUse() int { return ms.sem.InUse() }

func (ms *MetricsSemaphore) Waiting() int { return ms.sem.Waiting() }
