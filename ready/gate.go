package ready

import (
	"context"
	"sync"
)

// Future is a one-shot boolean outcome that any number of goroutines may
// await. A Future is settled at most once; after Done is closed, Value
// reports the settled result.
type Future struct {
	done chan struct{}

	mu  sync.Mutex
	val bool
	set bool
}

// NewFuture creates an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture creates a Future that is already settled with v.
// It is useful for returning a synchronously-known outcome through an
// API whose slow path hands out pending futures.
func ResolvedFuture(v bool) *Future {
	f := NewFuture()
	f.resolve(v)
	return f
}

// Done returns a channel that is closed when the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Value returns the settled result. It is only meaningful after Done
// is closed; before settlement it returns false.
func (f *Future) Value() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val
}

// Settled reports whether the Future has been resolved.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Wait blocks until the Future settles or ctx is done. It returns the
// settled value, or ctx.Err() if the context expired first.
func (f *Future) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.Value(), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// resolve settles the Future. Second and later calls are no-ops.
func (f *Future) resolve(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return
	}
	f.val = v
	f.set = true
	close(f.done)
}

// Gate is a single-slot broadcast point for a recurring one-shot outcome.
//
// The gate is "armed" while a pending Future is outstanding and "idle"
// otherwise. The zero value is not usable; create gates with NewGate.
type Gate struct {
	mu      sync.Mutex
	pending *Future
}

// NewGate creates an idle Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Charge returns the Future for the next resolution. If the gate is idle
// it arms a new Future; if it is already armed, the same pending Future
// is returned so that all callers share one outcome.
func (g *Gate) Charge() *Future {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		g.pending = NewFuture()
	}
	return g.pending
}

// Resolve releases the current pending Future with v and re-arms the gate
// to idle, so a later Charge yields an independent Future. Resolving an
// idle gate is a no-op.
func (g *Gate) Resolve(v bool) {
	g.mu.Lock()
	f := g.pending
	g.pending = nil
	g.mu.Unlock()

	if f != nil {
		f.resolve(v)
	}
}

// Armed reports whether a pending Future is outstanding.
func (g *Gate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}
