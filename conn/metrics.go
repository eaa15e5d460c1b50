package conn

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterSignals counts state-change signals with an OpenTelemetry meter.
// It wraps a state handler so instrumentation composes with the single
// active handler the connection supports.
type MeterSignals struct {
	signals metric.Int64Counter
}

// NewMeterSignals creates a MeterSignals recording under conn.signals.
func NewMeterSignals(meter metric.Meter) (*MeterSignals, error) {
	signals, err := meter.Int64Counter(
		"conn.signals",
		metric.WithDescription("State-change signals emitted by a resilient connection"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		return nil, err
	}
	return &MeterSignals{signals: signals}, nil
}

// Wrap returns a state handler that records each signal and then invokes
// next. next may be nil.
func (m *MeterSignals) Wrap(next func(Signal)) func(Signal) {
	return func(s Signal) {
		m.signals.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("kind", s.Kind.String()),
			attribute.Bool("error", s.Err != nil),
		))
		if next != nil {
			next(s)
		}
	}
}
