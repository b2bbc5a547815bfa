package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// ErrWouldBlock is returned by TrySend when the operation cannot
// complete immediately.
var ErrWouldBlock = errors.New("operation would block")

// Stats holds counters describing channel activity.
type Stats struct {
	// SendCount is the number of completed sends.
	SendCount int64

	// ReceiveCount is the number of completed receives.
	ReceiveCount int64

	// BlockedSends is the number of sends that had to block.
	BlockedSends int64

	// BlockedReceives is the number of receives that had to block.
	BlockedReceives int64

	// BufferUtilization is the current buffer fill ratio (0 for
	// rendezvous channels).
	BufferUtilization float64
}

// deposit is a value parked by a sender on a rendezvous channel, waiting
// for a receiver to take it.
type deposit[T any] struct {
	value  T
	taken  bool
	failed bool
	done   chan struct{}
}

// Channel is a closable queue of T with optional fixed capacity.
// Create one with New; the zero value is not usable.
type Channel[T any] struct {
	mu       sync.Mutex
	sendCond *sync.Cond
	recvCond *sync.Cond

	capacity int
	buf      []T
	head     int
	tail     int
	count    int

	sendq       []*deposit[T]
	recvWaiting int

	closed bool
	stats  Stats
}

// New creates a channel. Capacity 0 creates a rendezvous (unbuffered)
// channel; capacity > 0 buffers up to capacity values. A negative
// capacity is a configuration bug and panics.
func New[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		panic(tferrors.NewValidationError("channel", "capacity", capacity, "cannot be negative").
			WithHint("use 0 for a rendezvous channel"))
	}

	ch := &Channel[T]{capacity: capacity}
	if capacity > 0 {
		ch.buf = make([]T, capacity)
	}
	ch.sendCond = sync.NewCond(&ch.mu)
	ch.recvCond = sync.NewCond(&ch.mu)
	return ch
}

// Send delivers v to the channel. It blocks while the buffer is full,
// or, on a rendezvous channel, until a receiver takes the value. Send
// fails with ErrChannelClosed once the channel is closed and with
// ctx.Err() if ctx is cancelled while blocked.
func (ch *Channel[T]) Send(ctx context.Context, v T) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if ch.capacity == 0 {
		return ch.sendRendezvous(ctx, v)
	}
	return ch.sendBuffered(ctx, v)
}

func (ch *Channel[T]) sendBuffered(ctx context.Context, v T) error {
	stop := ch.watch(ctx)
	defer stop()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	for {
		if ch.closed {
			return tferrors.ErrChannelClosed
		}
		if ch.count < ch.capacity {
			ch.enqueueLocked(v)
			ch.stats.SendCount++
			ch.recvCond.Signal()
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		ch.stats.BlockedSends++
		ch.sendCond.Wait()
	}
}

func (ch *Channel[T]) sendRendezvous(ctx context.Context, v T) error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return tferrors.ErrChannelClosed
	}

	d := &deposit[T]{value: v, done: make(chan struct{})}
	ch.sendq = append(ch.sendq, d)
	ch.stats.BlockedSends++
	ch.recvCond.Signal()
	ch.mu.Unlock()

	select {
	case <-d.done:
		if d.failed {
			return tferrors.ErrChannelClosed
		}
		ch.mu.Lock()
		ch.stats.SendCount++
		ch.mu.Unlock()
		return nil
	case <-ctx.Done():
		ch.mu.Lock()
		if d.taken {
			// The receiver won the race; the send completed.
			ch.stats.SendCount++
			ch.mu.Unlock()
			return nil
		}
		if d.failed {
			ch.mu.Unlock()
			return tferrors.ErrChannelClosed
		}
		ch.removeDepositLocked(d)
		ch.mu.Unlock()
		return ctx.Err()
	}
}

// TrySend delivers v without blocking. It returns ErrWouldBlock when the
// buffer is full, or, on a rendezvous channel, when no receiver is
// currently waiting.
func (ch *Channel[T]) TrySend(v T) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return tferrors.ErrChannelClosed
	}

	if ch.capacity == 0 {
		if ch.recvWaiting <= len(ch.sendq) {
			return ErrWouldBlock
		}
		d := &deposit[T]{value: v, taken: true, done: make(chan struct{})}
		close(d.done)
		ch.sendq = append(ch.sendq, d)
		ch.stats.SendCount++
		ch.recvCond.Signal()
		return nil
	}

	if ch.count >= ch.capacity {
		return ErrWouldBlock
	}
	ch.enqueueLocked(v)
	ch.stats.SendCount++
	ch.recvCond.Signal()
	return nil
}

// Receive takes the next value. It blocks until a value is available or
// the channel is closed and drained, in which case it returns
// (zero, false, nil). A cancelled ctx returns ctx.Err().
func (ch *Channel[T]) Receive(ctx context.Context) (T, bool, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	stop := ch.watch(ctx)
	defer stop()

	ch.mu.Lock()
	defer ch.mu.Unlock()

	for {
		if v, ok := ch.takeLocked(); ok {
			return v, true, nil
		}
		if ch.closed {
			return zero, false, nil
		}
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		ch.stats.BlockedReceives++
		ch.recvWaiting++
		ch.recvCond.Wait()
		ch.recvWaiting--
	}
}

// TryReceive takes the next value without blocking. ok is false when no
// value is ready; the error is ErrChannelClosed only when the channel is
// closed and drained.
func (ch *Channel[T]) TryReceive() (T, bool, error) {
	var zero T

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if v, ok := ch.takeLocked(); ok {
		return v, true, nil
	}
	if ch.closed {
		return zero, false, tferrors.ErrChannelClosed
	}
	return zero, false, nil
}

// Close closes the channel for sending. Buffered values, and values
// already accepted by TrySend, remain receivable; pending rendezvous
// senders fail with ErrChannelClosed. Close is to be called by the
// producer side exactly once; a second call returns ErrAlreadyClosed.
func (ch *Channel[T]) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return tferrors.ErrAlreadyClosed
	}
	ch.closed = true

	// A taken deposit was acknowledged to its sender and must still
	// reach a receiver; only senders still waiting for a receiver fail.
	kept := make([]*deposit[T], 0, len(ch.sendq))
	for _, d := range ch.sendq {
		if d.taken {
			kept = append(kept, d)
			continue
		}
		d.failed = true
		close(d.done)
	}
	ch.sendq = kept

	ch.sendCond.Broadcast()
	ch.recvCond.Broadcast()
	return nil
}

// IsClosed reports whether Close has been called.
func (ch *Channel[T]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Len returns the number of buffered values.
func (ch *Channel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.count
}

// Cap returns the channel capacity.
func (ch *Channel[T]) Cap() int {
	return ch.capacity
}

// Stats returns a snapshot of channel activity counters.
func (ch *Channel[T]) Stats() Stats {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	s := ch.stats
	if ch.capacity > 0 {
		s.BufferUtilization = float64(ch.count) / float64(ch.capacity)
	}
	return s
}

// takeLocked removes the next available value: buffered values first,
// then parked rendezvous deposits. Must be called with ch.mu held.
func (ch *Channel[T]) takeLocked() (T, bool) {
	if ch.count > 0 {
		v := ch.dequeueLocked()
		ch.stats.ReceiveCount++
		ch.sendCond.Signal()
		return v, true
	}
	for len(ch.sendq) > 0 {
		d := ch.sendq[0]
		ch.sendq = ch.sendq[1:]
		if d.taken {
			// Parked by TrySend; already acknowledged.
			ch.stats.ReceiveCount++
			return d.value, true
		}
		d.taken = true
		close(d.done)
		ch.stats.ReceiveCount++
		return d.value, true
	}
	var zero T
	return zero, false
}

func (ch *Channel[T]) enqueueLocked(v T) {
	ch.buf[ch.tail] = v
	ch.tail = (ch.tail + 1) % ch.capacity
	ch.count++
}

func (ch *Channel[T]) dequeueLocked() T {
	v := ch.buf[ch.head]
	var zero T
	ch.buf[ch.head] = zero // release the reference
	ch.head = (ch.head + 1) % ch.capacity
	ch.count--
	return v
}

func (ch *Channel[T]) removeDepositLocked(d *deposit[T]) {
	for i, cand := range ch.sendq {
		if cand == d {
			ch.sendq = append(ch.sendq[:i], ch.sendq[i+1:]...)
			return
		}
	}
}

// watch wakes blocked cond waiters when ctx is cancelled, so blocking
// operations unblock promptly instead of at the next natural signal.
func (ch *Channel[T]) watch(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ch.mu.Lock()
			ch.sendCond.Broadcast()
			ch.recvCond.Broadcast()
			ch.mu.Unlock()
		case <-stopCh:
		}
	}()
	return func() { close(stopCh) }
}

// Drain receives until the channel is closed and empty, returning all
// values. Intended for consumers collecting final results.
func (ch *Channel[T]) Drain(ctx context.Context) ([]T, error) {
	var out []T
	for {
		v, ok, err := ch.Receive(ctx)
		if err != nil {
			return out, fmt.Errorf("drain interrupted after %d values: %w", len(out), err)
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
