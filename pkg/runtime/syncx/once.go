package syncx

import "sync/atomic"

// Once runs a function exactly one time across any number of concurrent
// callers. Later callers block until the first invocation completes,
// then return without running anything.
type Once struct {
	done atomic.Bool
	gate chan struct{}
	won  atomic.Bool
}

// NewOnce creates an unused Once.
func NewOnce() *Once {
	return &Once{gate: make(chan struct{})}
}

// Do invokes fn if and only if no call to Do has run before. fn runs at
// most once even if it panics; the panic is re-raised to the winning
// caller and the gate still opens so other callers do not hang.
func (o *Once) Do(fn func()) {
	if o.done.Load() {
		return
	}
	if o.won.CompareAndSwap(false, true) {
		defer func() {
			o.done.Store(true)
			close(o.gate)
		}()
		fn()
		return
	}
	<-o.gate
}

// Done reports whether Do has completed.
func (o *Once) Done() bool {
	return o.done.Load()
}
