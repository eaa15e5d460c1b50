package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestAdd_FastPathIgnoresPriority(t *testing.T) {
	s := New(Config{Key: "q", Limit: 2})

	started := make(chan int, 2)
	release := make(chan struct{})

	// Two tasks below the limit dispatch immediately even with priority 0.
	for i := 0; i < 2; i++ {
		i := i
		s.Add(context.Background(), func(ctx context.Context) error {
			started <- i
			<-release
			return nil
		}, 0)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-started:
		case <-time.After(time.Second):
			t.Fatal("fast-path task did not start")
		}
	}
	if got := s.InFlight(); got != 2 {
		t.Errorf("InFlight() = %d, want 2", got)
	}
	close(release)
}

func TestAdd_WaitlistDispatchesByDescendingPriority(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	blockerStarted := make(chan struct{})
	release := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(blockerStarted)
		<-release
		return nil
	}, 0)
	<-blockerStarted

	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 8)

	// Submitted out of priority order while the slot is saturated.
	for _, p := range []int{2, 5, 1, 4, 3} {
		p := p
		s.Add(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			done <- struct{}{}
			return nil
		}, p)
	}

	if got := s.WaitlistLen(); got != 5 {
		t.Fatalf("WaitlistLen() = %d, want 5", got)
	}

	close(release)
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("waitlisted task did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{5, 4, 3, 2, 1}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", order, want)
		}
	}
}

func TestAdd_EqualPrioritiesAreFIFO(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, 0)
	<-started

	var mu sync.Mutex
	var order []int
	done := make(chan struct{}, 4)
	for i := 0; i < 4; i++ {
		i := i
		s.Add(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done <- struct{}{}
			return nil
		}, 7)
	}

	close(release)
	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 4; i++ {
		if order[i] != i {
			t.Fatalf("dispatch order = %v, want FIFO", order)
		}
	}
}

func TestAdd_DropsAlreadyCancelled(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan struct{}, 1)
	s.Add(ctx, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}, 0)

	select {
	case <-ran:
		t.Fatal("task with pre-cancelled context was dispatched")
	case <-time.After(50 * time.Millisecond):
	}
	if got := s.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d, want 0", got)
	}
}

func TestCancel_WaitlistedTaskReleasesEntry(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, 0)
	<-started

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancelledRan := make(chan struct{}, 1)
	s.Add(cancelCtx, func(ctx context.Context) error {
		cancelledRan <- struct{}{}
		return nil
	}, 10)

	nextRan := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(nextRan)
		return nil
	}, 1)

	cancel()
	waitFor(t, time.Second, func() bool { return s.WaitlistLen() == 1 }, "cancelled task not unlinked")

	close(release)
	select {
	case <-nextRan:
	case <-time.After(time.Second):
		t.Fatal("next task did not run after cancellation")
	}
	select {
	case <-cancelledRan:
		t.Fatal("cancelled waitlisted task was dispatched")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancel_RunningTaskFreesSlotWithoutPreemption(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	blockForever := make(chan struct{})
	defer close(blockForever)

	runningCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	s.Add(runningCtx, func(ctx context.Context) error {
		close(started)
		<-blockForever // the work itself never finishes during the test
		return nil
	}, 0)
	<-started

	nextRan := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(nextRan)
		return nil
	}, 0)

	// Cancelling the running task frees its slot even though the
	// underlying work never settles.
	cancel()

	select {
	case <-nextRan:
	case <-time.After(time.Second):
		t.Fatal("slot was not released by cancellation")
	}
}

func TestRun_FailuresAreSwallowed(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	done := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	}, 0)
	s.Add(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	}, 0)
	s.Add(context.Background(), func(ctx context.Context) error {
		close(done)
		return nil
	}, 0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler stalled after task failures")
	}
	waitFor(t, time.Second, func() bool { return s.InFlight() == 0 }, "in-flight counter not drained")
}

func TestSetConcurrencyLimit_RaiseOnly(t *testing.T) {
	s := New(Config{Key: "q", Limit: 2})

	s.SetConcurrencyLimit(4)
	if got := s.ConcurrencyLimit(); got != 4 {
		t.Errorf("ConcurrencyLimit() = %d, want 4", got)
	}

	// Lowering and non-positive values are no-ops.
	s.SetConcurrencyLimit(1)
	s.SetConcurrencyLimit(0)
	s.SetConcurrencyLimit(-3)
	if got := s.ConcurrencyLimit(); got != 4 {
		t.Errorf("ConcurrencyLimit() after lowering attempts = %d, want 4", got)
	}
}

func TestSetConcurrencyLimit_RaiseDrainsWaitlist(t *testing.T) {
	s := New(Config{Key: "q", Limit: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, 0)
	<-started
	defer close(release)

	waiting := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(waiting)
		<-release
		return nil
	}, 0)

	s.SetConcurrencyLimit(2)

	select {
	case <-waiting:
	case <-time.After(time.Second):
		t.Fatal("raising the limit did not dispatch the waitlisted task")
	}
}

func TestObserver_Callbacks(t *testing.T) {
	obs := &recordingObserver{}
	s := New(Config{Key: "q", Limit: 1, Observer: obs})

	done := make(chan struct{})
	s.Add(context.Background(), func(ctx context.Context) error {
		close(done)
		return nil
	}, 3)

	<-done
	waitFor(t, time.Second, func() bool { return obs.settledCount() == 1 }, "settle not observed")

	if got := obs.submittedCount(); got != 1 {
		t.Errorf("submitted = %d, want 1", got)
	}
	if got := obs.dispatchedFast(); got != 1 {
		t.Errorf("fast-path dispatches = %d, want 1", got)
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	submitted  int
	fast       int
	slow       int
	settled    int
	cancelled  int
	limitRaise int
}

func (o *recordingObserver) TaskSubmitted(string, int) {
	o.mu.Lock()
	o.submitted++
	o.mu.Unlock()
}

func (o *recordingObserver) TaskDispatched(_ string, fastPath bool) {
	o.mu.Lock()
	if fastPath {
		o.fast++
	} else {
		o.slow++
	}
	o.mu.Unlock()
}

func (o *recordingObserver) TaskSettled(string, error) {
	o.mu.Lock()
	o.settled++
	o.mu.Unlock()
}

func (o *recordingObserver) TaskCancelled(string, bool) {
	o.mu.Lock()
	o.cancelled++
	o.mu.Unlock()
}

func (o *recordingObserver) LimitRaised(string, int, int) {
	o.mu.Lock()
	o.limitRaise++
	o.mu.Unlock()
}

func (o *recordingObserver) submittedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.submitted
}

func (o *recordingObserver) dispatchedFast() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fast
}

func (o *recordingObserver) settledCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settled
}
