package sched

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Observer receives diagnostic callbacks from a Scheduler.
//
// Callbacks may be invoked with the scheduler's lock held: implementations
// must be safe for concurrent use, lightweight, and non-blocking. The
// observer exists for instrumentation only; scheduler behavior never
// depends on it.
type Observer interface {
	// TaskSubmitted is called for every admitted Add.
	TaskSubmitted(key string, priority int)

	// TaskDispatched is called when a task gains an in-flight slot.
	// fastPath reports whether admission bypassed the waitlist.
	TaskDispatched(key string, fastPath bool)

	// TaskSettled is called when a task's work completes and releases
	// its slot. err is the swallowed failure, nil on success.
	TaskSettled(key string, err error)

	// TaskCancelled is called when a cancellation token releases a
	// task's entry. waiting reports whether the task was still
	// waitlisted (true) or had its running slot released (false).
	TaskCancelled(key string, waiting bool)

	// LimitRaised is called when the concurrency limit grows.
	LimitRaised(key string, old, new int)
}

// NopObserver discards all callbacks.
type NopObserver struct{}

func (NopObserver) TaskSubmitted(string, int)    {}
func (NopObserver) TaskDispatched(string, bool)  {}
func (NopObserver) TaskSettled(string, error)    {}
func (NopObserver) TaskCancelled(string, bool)   {}
func (NopObserver) LimitRaised(string, int, int) {}

// MeterObserver is an Observer backed by an OpenTelemetry meter.
type MeterObserver struct {
	submitted  metric.Int64Counter
	dispatched metric.Int64Counter
	settled    metric.Int64Counter
	cancelled  metric.Int64Counter
	inFlight   metric.Int64UpDownCounter
}

var _ Observer = (*MeterObserver)(nil)

// NewMeterObserver creates a MeterObserver recording under the
// sched.task.* instrument namespace.
func NewMeterObserver(meter metric.Meter) (*MeterObserver, error) {
	submitted, err := meter.Int64Counter(
		"sched.task.submitted",
		metric.WithDescription("Tasks admitted to a scheduler"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	dispatched, err := meter.Int64Counter(
		"sched.task.dispatched",
		metric.WithDescription("Tasks granted an in-flight slot"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	settled, err := meter.Int64Counter(
		"sched.task.settled",
		metric.WithDescription("Tasks whose work completed"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter(
		"sched.task.cancelled",
		metric.WithDescription("Tasks released by their cancellation token"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter(
		"sched.task.in_flight",
		metric.WithDescription("Units of work currently counted against a limit"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, err
	}

	return &MeterObserver{
		submitted:  submitted,
		dispatched: dispatched,
		settled:    settled,
		cancelled:  cancelled,
		inFlight:   inFlight,
	}, nil
}

func (m *MeterObserver) TaskSubmitted(key string, priority int) {
	m.submitted.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("queue", key),
		attribute.Int("priority", priority),
	))
}

func (m *MeterObserver) TaskDispatched(key string, fastPath bool) {
	attrs := metric.WithAttributes(
		attribute.String("queue", key),
		attribute.Bool("fast_path", fastPath),
	)
	m.dispatched.Add(context.Background(), 1, attrs)
	m.inFlight.Add(context.Background(), 1, metric.WithAttributes(attribute.String("queue", key)))
}

func (m *MeterObserver) TaskSettled(key string, err error) {
	m.settled.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("queue", key),
		attribute.Bool("error", err != nil),
	))
	m.inFlight.Add(context.Background(), -1, metric.WithAttributes(attribute.String("queue", key)))
}

func (m *MeterObserver) TaskCancelled(key string, waiting bool) {
	m.cancelled.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("queue", key),
		attribute.Bool("waiting", waiting),
	))
	if !waiting {
		// A running task's slot was released early.
		m.inFlight.Add(context.Background(), -1, metric.WithAttributes(attribute.String("queue", key)))
	}
}

func (m *MeterObserver) LimitRaised(string, int, int) {}
