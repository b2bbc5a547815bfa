package syncx

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

func TestRWLockConcurrentReaders(t *testing.T) {
	rw := NewRWLock()

	var active atomic.Int32
	var peak atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		go func() {
			rw.RLock()
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			rw.RUnlock()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	assert.Greater(t, peak.Load(), int32(1), "readers should overlap")
}

func TestRWLockWriterExcludesReaders(t *testing.T) {
	rw := NewRWLock()
	rw.Lock()

	got := make(chan struct{})
	go func() {
		rw.RLock()
		close(got)
		rw.RUnlock()
	}()

	select {
	case <-got:
		t.Fatal("reader acquired while writer held")
	case <-time.After(30 * time.Millisecond):
	}

	rw.Unlock()

	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer release")
	}
}

func TestRWLockWriterNotStarved(t *testing.T) {
	rw := NewRWLock()

	// Continuous reader churn.
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
				}
				rw.RLock()
				time.Sleep(time.Millisecond)
				rw.RUnlock()
			}
		}()
	}

	acquired := make(chan struct{})
	go func() {
		rw.Lock()
		close(acquired)
		rw.Unlock()
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("writer starved by reader churn")
	}
	close(stop)
}

func TestRWLockPendingWriterBlocksNewReaders(t *testing.T) {
	rw := NewRWLock()

	rw.RLock() // hold a read lock so the writer queues

	writerAcquired := make(chan struct{})
	go func() {
		rw.Lock()
		close(writerAcquired)
	}()

	// Give the writer time to queue.
	time.Sleep(10 * time.Millisecond)

	readerAcquired := make(chan struct{})
	go func() {
		rw.RLock()
		close(readerAcquired)
		rw.RUnlock()
	}()

	select {
	case <-readerAcquired:
		t.Fatal("new reader admitted ahead of a pending writer")
	case <-time.After(30 * time.Millisecond):
	}

	rw.RUnlock() // writer goes first, then the queued reader

	select {
	case <-writerAcquired:
	case <-time.After(time.Second):
		t.Fatal("writer never acquired")
	}
	rw.Unlock()

	select {
	case <-readerAcquired:
	case <-time.After(time.Second):
		t.Fatal("queued reader never acquired after writer release")
	}
}

func TestRWLockLockContext(t *testing.T) {
	rw := NewRWLock()
	rw.RLock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rw.LockContext(ctx)
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)

	rw.RUnlock()

	// A cancelled waiter must not wedge the lock.
	assert.NoError(t, rw.LockContext(context.Background()))
	rw.Unlock()
}

func TestRWLockRLockContext(t *testing.T) {
	rw := NewRWLock()
	rw.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rw.RLockContext(ctx)
	require.Error(t, err)

	rw.Unlock()
	assert.NoError(t, rw.RLockContext(context.Background()))
	rw.RUnlock()
}

func TestRWLockUnlockUnheldPanics(t *testing.T) {
	rw := NewRWLock()

	assert.Panics(t, func() { rw.Unlock() })
	assert.Panics(t, func() { rw.RUnlock() })

	defer func() {
		err, ok := recover().(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, tferrors.ErrInvalidState)
	}()
	rw.RUnlock()
}
