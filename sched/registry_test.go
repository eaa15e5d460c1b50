package sched

import (
	"context"
	"testing"
	"time"
)

func TestGetOrCreateQueue_ReturnsSameInstance(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	a := r.GetOrCreateQueue("uploads", 2)
	b := r.GetOrCreateQueue("uploads", 0)

	if a != b {
		t.Error("GetOrCreateQueue returned distinct instances for the same key")
	}
	if got := a.ConcurrencyLimit(); got != 2 {
		t.Errorf("ConcurrencyLimit() = %d, want 2", got)
	}
}

func TestGetOrCreateQueue_RaisesButNeverLowersLimit(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	s := r.GetOrCreateQueue("uploads", 2)
	r.GetOrCreateQueue("uploads", 5)
	if got := s.ConcurrencyLimit(); got != 5 {
		t.Errorf("ConcurrencyLimit() = %d, want 5 after re-registration", got)
	}

	r.GetOrCreateQueue("uploads", 1)
	if got := s.ConcurrencyLimit(); got != 5 {
		t.Errorf("ConcurrencyLimit() = %d, want 5; re-registration must not lower it", got)
	}
}

func TestGetOrCreateQueue_DefaultLimitIsOne(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	if got := r.GetOrCreateQueue("serial", 0).ConcurrencyLimit(); got != 1 {
		t.Errorf("ConcurrencyLimit() = %d, want 1", got)
	}
	if got := r.GetQueue("serial2").ConcurrencyLimit(); got != 1 {
		t.Errorf("GetQueue ConcurrencyLimit() = %d, want 1", got)
	}
}

func TestTryGet_NeverCreates(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	if _, ok := r.TryGet("absent"); ok {
		t.Error("TryGet reported an entry for an unknown key")
	}

	r.GetQueue("present")
	s, ok := r.TryGet("present")
	if !ok || s == nil {
		t.Error("TryGet did not find an existing scheduler")
	}
}

func TestRegistryAdd_AutoCreatesSerialQueue(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	done := make(chan struct{})
	r.Add(context.Background(), "jobs", func(ctx context.Context) error {
		close(done)
		return nil
	}, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task submitted through the registry did not run")
	}

	s, ok := r.TryGet("jobs")
	if !ok {
		t.Fatal("registry did not create the scheduler")
	}
	if got := s.ConcurrencyLimit(); got != 1 {
		t.Errorf("ConcurrencyLimit() = %d, want 1", got)
	}
}

func TestRegistry_DistinctKeysAreIndependent(t *testing.T) {
	r := NewRegistry(RegistryConfig{})

	a := r.GetOrCreateQueue("a", 1)
	b := r.GetOrCreateQueue("b", 3)

	if a == b {
		t.Fatal("distinct keys share a scheduler")
	}
	if a.ConcurrencyLimit() == b.ConcurrencyLimit() {
		t.Error("limits unexpectedly equal; schedulers may share state")
	}
}
