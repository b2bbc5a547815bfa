package task

import (
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	before := time.Now()
	tk := New("payload")

	if tk.ID == "" {
		t.Fatal("task ID should be generated")
	}
	if tk.Payload != "payload" {
		t.Errorf("Payload = %v, want %q", tk.Payload, "payload")
	}
	if tk.ProducedAt.Before(before) {
		t.Error("ProducedAt should not predate creation")
	}
}

func TestNewUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tk := New(i)
		if seen[tk.ID] {
			t.Fatalf("duplicate task ID %s", tk.ID)
		}
		seen[tk.ID] = true
	}
}

func TestResultFailed(t *testing.T) {
	ok := Result{TaskID: "a", Value: 1}
	if ok.Failed() {
		t.Error("result without error should not be failed")
	}

	bad := Result{TaskID: "b", Err: errors.New("boom")}
	if !bad.Failed() {
		t.Error("result with error should be failed")
	}
}
