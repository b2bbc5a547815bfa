package scope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

func TestRootScope(t *testing.T) {
	s := New(nil)

	assert.NoError(t, s.Err())
	assert.False(t, s.Cancelled())

	select {
	case <-s.Done():
		t.Fatal("done channel should be open")
	default:
	}

	s.Cancel()

	assert.ErrorIs(t, s.Err(), tferrors.ErrCancelled)
	assert.True(t, s.Cancelled())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed after Cancel")
	}
}

func TestCancelIdempotent(t *testing.T) {
	s := New(nil)

	s.Cancel()
	err1 := s.Err()
	s.Cancel()
	s.Cancel()

	assert.Equal(t, err1, s.Err(), "repeated Cancel must not change the observable state")
}

func TestParentCancelPropagates(t *testing.T) {
	parent := New(nil)
	child := New(parent)
	grandchild := New(child)

	parent.Cancel()

	assert.ErrorIs(t, child.Err(), tferrors.ErrCancelled)
	assert.ErrorIs(t, grandchild.Err(), tferrors.ErrCancelled)

	select {
	case <-grandchild.Done():
	case <-time.After(time.Second):
		t.Fatal("grandchild done channel not closed")
	}
}

func TestChildCancelDoesNotAffectParent(t *testing.T) {
	parent := New(nil)
	child := New(parent)

	child.Cancel()

	assert.NoError(t, parent.Err())
	assert.ErrorIs(t, child.Err(), tferrors.ErrCancelled)
}

func TestChildOfCancelledParent(t *testing.T) {
	parent := New(nil)
	parent.Cancel()

	child := New(parent)
	assert.ErrorIs(t, child.Err(), tferrors.ErrCancelled)
}

func TestDeadlineExpiry(t *testing.T) {
	s := WithTimeout(nil, 30*time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("deadline scope never cancelled")
	}

	assert.ErrorIs(t, s.Err(), tferrors.ErrDeadlineExceeded)
}

func TestDeadlineAlreadyPassed(t *testing.T) {
	s := WithDeadline(nil, time.Now().Add(-time.Second))
	assert.ErrorIs(t, s.Err(), tferrors.ErrDeadlineExceeded)
}

func TestDeadlineDistinguishableFromCancel(t *testing.T) {
	manual := New(nil)
	manual.Cancel()

	timed := WithTimeout(nil, 10*time.Millisecond)
	<-timed.Done()

	assert.ErrorIs(t, manual.Err(), tferrors.ErrCancelled)
	assert.NotErrorIs(t, manual.Err(), tferrors.ErrDeadlineExceeded)
	assert.ErrorIs(t, timed.Err(), tferrors.ErrDeadlineExceeded)
	assert.NotErrorIs(t, timed.Err(), tferrors.ErrCancelled)
}

func TestCancelBeforeDeadline(t *testing.T) {
	s := WithTimeout(nil, time.Hour)
	s.Cancel()

	assert.ErrorIs(t, s.Err(), tferrors.ErrCancelled)
}

func TestEffectiveDeadlineComposes(t *testing.T) {
	near := time.Now().Add(time.Minute)
	far := time.Now().Add(time.Hour)

	parent := WithDeadline(nil, near)
	child := WithDeadline(parent, far)

	deadline, ok := child.Deadline()
	require.True(t, ok)
	assert.Equal(t, near, deadline, "child reports the nearer ancestor deadline")

	// And the other way around: a nearer child deadline wins.
	parent2 := WithDeadline(nil, far)
	child2 := WithDeadline(parent2, near)

	deadline, ok = child2.Deadline()
	require.True(t, ok)
	assert.Equal(t, near, deadline)
}

func TestNoDeadline(t *testing.T) {
	s := New(New(nil))
	_, ok := s.Deadline()
	assert.False(t, ok)
}

func TestParentDeadlinePropagatesAsDeadline(t *testing.T) {
	parent := WithTimeout(nil, 20*time.Millisecond)
	child := New(parent)

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child not cancelled by parent deadline")
	}

	assert.ErrorIs(t, child.Err(), tferrors.ErrDeadlineExceeded)
}

func TestScopeIsContext(t *testing.T) {
	var ctx context.Context = New(nil)

	assert.Nil(t, ctx.Value("anything"))
	assert.NoError(t, ctx.Err())
}

func TestScopeWorksWithSelect(t *testing.T) {
	s := New(nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Cancel()
	}()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("select on Done never fired")
	}
}
