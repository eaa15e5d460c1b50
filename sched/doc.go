// Package sched provides a priority-ordered, concurrency-limited
// asynchronous task scheduler with cooperative cancellation, and a
// registry of named scheduler instances.
//
// # Admission model
//
// Every scheduler holds a concurrency limit and an in-flight counter.
// A task submitted while the counter is below the limit is dispatched
// immediately, regardless of its priority: capacity, not queue position,
// governs the fast path. A task submitted at or above the limit joins a
// waitlist ordered by descending priority (FIFO among equal priorities)
// and is dispatched strictly in that order as slots free up.
//
// Strict priority ordering is therefore guaranteed only among tasks that
// actually had to wait. Tasks admitted below saturation race freely.
//
// # Failure and cancellation
//
// A task's error or panic is logged and swallowed; it never reaches the
// submitter, and it never stalls the waitlist. Cancellation is cooperative:
// cancelling a task's context releases its waitlist entry or in-flight slot
// immediately, but never interrupts work that is already running.
//
// # Usage
//
//	reg := sched.NewRegistry(sched.RegistryConfig{})
//	reg.Add(ctx, "thumbnails", func(ctx context.Context) error {
//	    return renderThumbnail(ctx)
//	}, 0)
//
//	q := reg.GetOrCreateQueue("uploads", 4)
//	q.Add(ctx, uploadChunk, 10)
package sched
