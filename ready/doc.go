// Package ready provides a single-slot, re-armable broadcast future.
//
// A Gate lets any number of callers await a one-shot boolean outcome.
// Charging an idle gate arms a new Future; charging an armed gate returns
// the same pending Future, so every caller shares one outcome. Resolving
// the gate releases all waiters and immediately re-arms it to idle, so a
// subsequent charge yields a fresh, independent Future.
//
// Typical usage:
//
//	g := ready.NewGate()
//
//	// Any number of goroutines may wait on the same outcome.
//	f := g.Charge()
//	go func() {
//	    ok, err := f.Wait(ctx)
//	    ...
//	}()
//
//	// Exactly one resolution wakes them all.
//	g.Resolve(true)
package ready
