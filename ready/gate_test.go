package ready

import (
	"context"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestCharge_SharesPendingFuture(t *testing.T) {
	g := NewGate()

	f1 := g.Charge()
	f2 := g.Charge()

	if f1 != f2 {
		t.Error("Charge() before Resolve returned distinct futures, want the same one")
	}
	if !g.Armed() {
		t.Error("Armed() = false after Charge, want true")
	}
}

func TestResolve_WakesAllWaiters(t *testing.T) {
	g := NewGate()
	f := g.Charge()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var eg errgroup.Group
	for i := 0; i < 4; i++ {
		eg.Go(func() error {
			v, err := f.Wait(ctx)
			if err != nil {
				return err
			}
			if !v {
				t.Error("Wait() = false, want true")
			}
			return nil
		})
	}

	g.Resolve(true)

	if err := eg.Wait(); err != nil {
		t.Fatalf("waiter failed: %v", err)
	}
}

func TestResolve_RearmsToIdle(t *testing.T) {
	g := NewGate()

	f1 := g.Charge()
	g.Resolve(true)

	if g.Armed() {
		t.Error("Armed() = true after Resolve, want false")
	}

	f2 := g.Charge()
	if f1 == f2 {
		t.Error("Charge() after Resolve returned the settled future, want a new one")
	}
	if f2.Settled() {
		t.Error("new future is already settled")
	}
	if !f1.Settled() || !f1.Value() {
		t.Errorf("first future: Settled() = %v, Value() = %v, want true, true", f1.Settled(), f1.Value())
	}
}

func TestResolve_IdleIsNoop(t *testing.T) {
	g := NewGate()
	g.Resolve(true) // must not panic or arm anything
	if g.Armed() {
		t.Error("Armed() = true after resolving an idle gate")
	}
}

func TestFuture_ResolveOnce(t *testing.T) {
	f := NewFuture()
	f.resolve(true)
	f.resolve(false) // ignored

	if !f.Value() {
		t.Error("Value() = false, want true from the first resolution")
	}
}

func TestResolvedFuture(t *testing.T) {
	f := ResolvedFuture(false)

	select {
	case <-f.Done():
	default:
		t.Fatal("ResolvedFuture is not settled")
	}
	if f.Value() {
		t.Error("Value() = true, want false")
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	g := NewGate()
	f := g.Charge()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.Wait(ctx); err == nil {
		t.Error("Wait() with cancelled context returned nil error")
	}
}
