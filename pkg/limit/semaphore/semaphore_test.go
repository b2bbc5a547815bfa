package semaphore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/metrics"
)

func TestNewValidation(t *testing.T) {
	_, err := New(0)
	testutil.AssertError(t, err)
	if !tferrors.IsValidationError(err) {
		t.Error("expected a ValidationError")
	}

	_, err = New(-5)
	testutil.AssertError(t, err)
}

func TestTryAcquireRelease(t *testing.T) {
	sem, err := New(2)
	testutil.AssertNoError(t, err)

	testutil.AssertEqual(t, sem.TryAcquire(), true)
	testutil.AssertEqual(t, sem.TryAcquire(), true)
	testutil.AssertEqual(t, sem.TryAcquire(), false)
	testutil.AssertEqual(t, sem.InUse(), 2)
	testutil.AssertEqual(t, sem.Available(), 0)

	sem.Release()
	testutil.AssertEqual(t, sem.TryAcquire(), true)
	sem.ReleaseN(2)
	testutil.AssertEqual(t, sem.Available(), 2)
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sem.Acquire(ctx))

	acquired := make(chan struct{})
	go func() {
		if err := sem.Acquire(ctx); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("acquire should block while the permit is held")
	case <-time.After(50 * time.Millisecond):
	}

	sem.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("release did not wake the waiter")
	}
}

func TestAcquireCancellation(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, sem.TryAcquire(), true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = sem.Acquire(ctx)
	testutil.AssertError(t, err)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded in chain", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("cancelled acquire took %v", elapsed)
	}
	testutil.AssertEqual(t, sem.Waiting(), 0)
}

func TestAcquireNAtomic(t *testing.T) {
	sem, err := New(3)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sem.AcquireN(ctx, 3))
	testutil.AssertEqual(t, sem.TryAcquire(), false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sem.AcquireN(ctx, 2); err != nil {
			t.Error(err)
		}
	}()

	// Releasing one permit is not enough for the n=2 waiter.
	sem.Release()
	select {
	case <-done:
		t.Fatal("waiter woke with insufficient permits")
	case <-time.After(50 * time.Millisecond):
	}

	sem.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never granted")
	}
	testutil.AssertEqual(t, sem.InUse(), 3)
}

func TestAcquireNOverCapacity(t *testing.T) {
	sem, err := New(2)
	testutil.AssertNoError(t, err)

	err = sem.AcquireN(context.Background(), 3)
	testutil.AssertError(t, err)
	if !tferrors.IsValidationError(err) {
		t.Error("over-capacity acquire should fail validation, not deadlock")
	}
}

func TestFIFOOrdering(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sem.Acquire(ctx))

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			sem.Release()
		}(i)
		// Let each waiter queue before the next arrives.
		testutil.Eventually(t, time.Second, func() bool { return sem.Waiting() == i+1 })
	}

	sem.Release()
	wg.Wait()

	for i, id := range order {
		testutil.AssertEqual(t, id, i)
	}
}

func TestReleaseUnheldPanics(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected a panic")
		}
		if err, ok := r.(error); !ok || !errors.Is(err, tferrors.ErrInvalidState) {
			t.Errorf("panic = %v, want ErrInvalidState", r)
		}
	}()
	sem.Release()
}

func TestSetCapacity(t *testing.T) {
	sem, err := New(1)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sem.Acquire(ctx))

	// Growing wakes waiters.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sem.Acquire(ctx); err != nil {
			t.Error(err)
		}
	}()
	testutil.Eventually(t, time.Second, func() bool { return sem.Waiting() == 1 })
	testutil.AssertNoError(t, sem.SetCapacity(2))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("grow did not wake the waiter")
	}

	// Shrinking below usage takes effect as permits come back.
	testutil.AssertNoError(t, sem.SetCapacity(1))
	testutil.AssertEqual(t, sem.Capacity(), 1)
	testutil.AssertEqual(t, sem.InUse(), 2)
	sem.Release()
	sem.Release()
	testutil.AssertEqual(t, sem.Available(), 1)

	testutil.AssertError(t, sem.SetCapacity(0))
}

func TestConcurrentLoad(t *testing.T) {
	sem, err := New(4)
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Error(err)
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			sem.Release()
		}()
	}
	wg.Wait()

	if maxActive.Load() > 4 {
		t.Errorf("observed %d concurrent holders, capacity 4", maxActive.Load())
	}
	testutil.AssertEqual(t, sem.InUse(), 0)
	testutil.AssertEqual(t, sem.Available(), 4)
}

func TestMetricsSemaphore(t *testing.T) {
	reg := prometheus.NewRegistry()
	sem, err := NewWithMetrics(2, "test_sem", metrics.Config{Enabled: true, Registry: reg})
	testutil.AssertNoError(t, err)

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	testutil.AssertNoError(t, sem.Acquire(ctx))
	testutil.AssertEqual(t, sem.TryAcquire(), true)
	testutil.AssertEqual(t, sem.TryAcquire(), false)
	sem.ReleaseN(2)

	families, err := reg.Gather()
	testutil.AssertNoError(t, err)

	found := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				found[mf.GetName()] += c.GetValue()
			}
		}
	}
	testutil.AssertEqual(t, found["taskflow_semaphore_acquired_total"], 2.0)
	testutil.AssertEqual(t, found["taskflow_semaphore_denied_total"], 1.0)
}
