package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/apiwire/apiwire/observe"
)

// Func is a unit of work submitted to a Scheduler. Its result is ignored
// by the scheduler: an error (or panic) is logged and swallowed, never
// surfaced to the submitter.
type Func func(ctx context.Context) error

// task is a waitlist node. A task is linked while it waits for a slot;
// the removed flag guards against releasing the same entry twice when
// cancellation races with settlement.
type task struct {
	fn       Func
	ctx      context.Context
	priority int

	prev, next *task
	waiting    bool
	removed    bool

	// settled is closed when the task's accounting is fully released,
	// stopping the cancellation watcher.
	settled chan struct{}
}

// Config configures a Scheduler.
type Config struct {
	// Key identifies the scheduler in logs and diagnostics.
	Key string

	// Limit is the maximum number of in-flight units of work.
	// Default: 1 (fully serialized).
	Limit int

	// Logger receives swallowed task failures and admission warnings.
	// Default: a no-op logger.
	Logger observe.Logger

	// Observer receives diagnostic callbacks. Optional.
	Observer Observer
}

// Scheduler is an admission controller holding a priority-ordered
// waitlist and an in-flight counter bounded by a concurrency limit.
//
// Tasks submitted below the limit are dispatched immediately, regardless
// of priority; tasks submitted at the limit wait and are dispatched in
// strict priority-then-FIFO order as slots free.
type Scheduler struct {
	key string

	mu         sync.Mutex
	head, tail *task
	limit      int
	inFlight   int

	log observe.Logger
	obs Observer
}

// New creates a Scheduler from cfg, filling defaults for zero values.
func New(cfg Config) *Scheduler {
	if cfg.Limit <= 0 {
		cfg.Limit = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	return &Scheduler{
		key:   cfg.Key,
		limit: cfg.Limit,
		log:   cfg.Logger,
		obs:   cfg.Observer,
	}
}

// Key returns the scheduler's identifying key.
func (s *Scheduler) Key() string { return s.key }

// Add submits fn with the given priority. Negative priorities are clamped
// to zero. ctx is the task's cancellation token: a ctx that is already
// cancelled drops the task without dispatching it, and a ctx cancelled
// later releases the task's waitlist entry or in-flight slot immediately,
// without interrupting work that is already running.
//
// Add never blocks on the unit of work and reports nothing back: task
// failures are logged and swallowed.
func (s *Scheduler) Add(ctx context.Context, fn Func, priority int) {
	if fn == nil {
		s.log.Warn(context.Background(), "scheduler: nil task dropped", observe.String("queue", s.key))
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if priority < 0 {
		priority = 0
	}
	if ctx.Err() != nil {
		// Cancelled before submission: never dispatched.
		s.log.Debug(ctx, "scheduler: task already cancelled at submit", observe.String("queue", s.key))
		return
	}

	t := &task{
		fn:       fn,
		ctx:      ctx,
		priority: priority,
		settled:  make(chan struct{}),
	}

	s.mu.Lock()
	s.obs.TaskSubmitted(s.key, priority)

	fastPath := s.inFlight < s.limit
	if fastPath {
		// Fast path: capacity governs admission, not queue position.
		s.inFlight++
		s.obs.TaskDispatched(s.key, true)
	} else {
		s.insert(t)
		t.waiting = true
	}
	s.mu.Unlock()

	if ctx.Done() != nil {
		go s.watchCancel(t)
	}
	if fastPath {
		go s.run(t)
	}
}

// SetConcurrencyLimit raises the concurrency limit to n. Lowering the
// limit is not supported: tasks already admitted were counted against the
// old capacity, and shrinking it would starve them. Such calls (and
// non-positive n) are logged and ignored.
func (s *Scheduler) SetConcurrencyLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		s.log.Warn(context.Background(), "scheduler: ignoring non-positive concurrency limit",
			observe.String("queue", s.key), observe.Int("limit", n))
		return
	}
	if n < s.limit {
		s.log.Warn(context.Background(), "scheduler: concurrency limit can only be raised",
			observe.String("queue", s.key), observe.Int("current", s.limit), observe.Int("requested", n))
		return
	}
	if n == s.limit {
		return
	}

	s.obs.LimitRaised(s.key, s.limit, n)
	s.limit = n
	s.dispatchLocked()
}

// ConcurrencyLimit returns the current limit.
func (s *Scheduler) ConcurrencyLimit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// InFlight returns the number of units of work currently counted against
// the limit.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// WaitlistLen returns the number of tasks waiting for a slot.
func (s *Scheduler) WaitlistLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for t := s.head; t != nil; t = t.next {
		n++
	}
	return n
}

// insert links t into the waitlist: descending priority, FIFO among
// equals. The walk advances while the current priority is >= the new
// task's, so the new task lands after every peer of equal priority.
func (s *Scheduler) insert(t *task) {
	cur := s.head
	for cur != nil && cur.priority >= t.priority {
		cur = cur.next
	}
	switch {
	case cur == nil:
		// Tail (or empty list).
		t.prev = s.tail
		if s.tail != nil {
			s.tail.next = t
		} else {
			s.head = t
		}
		s.tail = t
	case cur == s.head:
		t.next = cur
		cur.prev = t
		s.head = t
	default:
		t.prev = cur.prev
		t.next = cur
		cur.prev.next = t
		cur.prev = t
	}
}

// unlink removes t from the waitlist. Caller holds s.mu.
func (s *Scheduler) unlink(t *task) {
	if t.prev != nil {
		t.prev.next = t.next
	} else {
		s.head = t.next
	}
	if t.next != nil {
		t.next.prev = t.prev
	} else {
		s.tail = t.prev
	}
	t.prev, t.next = nil, nil
	t.waiting = false
}

// dispatchLocked drains waitlist heads into free slots. Caller holds s.mu.
func (s *Scheduler) dispatchLocked() {
	for s.inFlight < s.limit && s.head != nil {
		t := s.head
		s.unlink(t)
		s.inFlight++
		s.obs.TaskDispatched(s.key, false)
		go s.run(t)
	}
}

// run executes the unit of work and releases its accounting on
// settlement. Failures never propagate.
func (s *Scheduler) run(t *task) {
	err := s.invoke(t)
	if err != nil {
		s.log.Error(t.ctx, "scheduler: task failed", observe.String("queue", s.key), observe.Err(err))
	}

	s.mu.Lock()
	if t.removed {
		// Cancellation already released this task's slot; the late
		// settlement is accounting-neutral.
		s.mu.Unlock()
		return
	}
	t.removed = true
	close(t.settled)
	s.inFlight--
	s.obs.TaskSettled(s.key, err)
	s.dispatchLocked()
	s.mu.Unlock()
}

// invoke runs the task function, converting a panic into an error.
func (s *Scheduler) invoke(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// watchCancel releases the task's entry when its context fires. It never
// preempts running work; it only frees accounting so the next head can
// dispatch.
func (s *Scheduler) watchCancel(t *task) {
	select {
	case <-t.settled:
		return
	case <-t.ctx.Done():
	}

	s.mu.Lock()
	if t.removed {
		s.mu.Unlock()
		return
	}
	t.removed = true
	close(t.settled)

	if t.waiting {
		s.unlink(t)
		s.obs.TaskCancelled(s.key, true)
	} else {
		// Running: give the slot back now; the work finishes in the
		// background and settles accounting-neutral.
		s.inFlight--
		s.obs.TaskCancelled(s.key, false)
		s.dispatchLocked()
	}
	s.mu.Unlock()

	s.log.Debug(t.ctx, "scheduler: task cancelled", observe.String("queue", s.key))
}
