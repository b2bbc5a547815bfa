package scope

import (
	"sync"
	"time"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

// Scope is a hierarchical cancellation signal with optional deadline.
// The zero value is not usable; create scopes with New, WithDeadline or
// WithTimeout. Scope implements context.Context.
type Scope struct {
	parent *Scope

	mu       sync.Mutex
	children map[*Scope]struct{}
	done     chan struct{}
	err      error

	deadline    time.Time
	hasDeadline bool
	timer       *time.Timer
}

// New creates a scope. A nil parent creates a root scope; otherwise the
// child is cancelled whenever the parent is.
func New(parent *Scope) *Scope {
	return newScope(parent, time.Time{}, false)
}

// WithDeadline creates a scope cancelled automatically once d passes.
// The effective deadline is the minimum of d and every ancestor deadline.
func WithDeadline(parent *Scope, d time.Time) *Scope {
	return newScope(parent, d, true)
}

// WithTimeout creates a scope cancelled automatically after timeout.
func WithTimeout(parent *Scope, timeout time.Duration) *Scope {
	return WithDeadline(parent, time.Now().Add(timeout))
}

func newScope(parent *Scope, deadline time.Time, hasDeadline bool) *Scope {
	s := &Scope{
		parent:      parent,
		done:        make(chan struct{}),
		deadline:    deadline,
		hasDeadline: hasDeadline,
	}

	if parent != nil && !parent.register(s) {
		// Parent already cancelled; the child starts cancelled with the
		// same cause so deadline vs manual cancellation stays distinguishable.
		s.cancelWith(parent.Err())
		return s
	}

	if hasDeadline {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.cancelWith(tferrors.ErrDeadlineExceeded)
			return s
		}
		s.mu.Lock()
		if s.err == nil {
			s.timer = time.AfterFunc(remaining, func() {
				s.cancelWith(tferrors.ErrDeadlineExceeded)
			})
		}
		s.mu.Unlock()
	}

	return s
}

// register adds child to the parent's notification set. It returns false
// if the parent is already cancelled.
func (s *Scope) register(child *Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false
	}
	if s.children == nil {
		s.children = make(map[*Scope]struct{})
	}
	s.children[child] = struct{}{}
	return true
}

func (s *Scope) unregister(child *Scope) {
	s.mu.Lock()
	delete(s.children, child)
	s.mu.Unlock()
}

// Cancel cancels the scope and all descendant scopes. Calling Cancel
// more than once has the same observable effect as calling it once.
func (s *Scope) Cancel() {
	s.cancelWith(tferrors.ErrCancelled)
}

func (s *Scope) cancelWith(cause error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = cause
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	children := make([]*Scope, 0, len(s.children))
	for child := range s.children {
		children = append(children, child)
	}
	s.children = nil
	close(s.done)
	s.mu.Unlock()

	// Propagate outside the lock; child cancellation takes its own lock.
	for _, child := range children {
		child.cancelWith(cause)
	}

	if s.parent != nil {
		s.parent.unregister(s)
	}
}

// Err returns nil while the scope is active, ErrCancelled after Cancel,
// or ErrDeadlineExceeded if the deadline passed first.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel closed when the scope is cancelled.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// Cancelled reports whether the scope has been cancelled.
func (s *Scope) Cancelled() bool {
	return s.Err() != nil
}

// Deadline returns the effective deadline: the minimum over this scope
// and all ancestors. ok is false if no scope in the chain has one.
func (s *Scope) Deadline() (deadline time.Time, ok bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.hasDeadline && (!ok || cur.deadline.Before(deadline)) {
			deadline = cur.deadline
			ok = true
		}
	}
	return deadline, ok
}

// Value implements context.Context. Scopes carry no request values.
func (s *Scope) Value(interface{}) interface{} {
	return nil
}
