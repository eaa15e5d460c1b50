package health

import (
	"context"
	"time"
)

// Status is the health state of a component.
type Status int

const (
	// StatusHealthy means the component is fully operational.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but with reduced
	// capacity or elevated pressure.
	StatusDegraded
	// StatusUnhealthy means the component is not operational.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one health check.
type Result struct {
	// Status is the health state.
	Status Status

	// Message gives human-readable context for the status.
	Message string

	// Details carries component-specific metadata.
	Details map[string]any

	// Duration is how long the check took.
	Duration time.Duration

	// Timestamp is when the check ran.
	Timestamp time.Time

	// Error is set when the check itself failed.
	Error error
}

// Healthy builds a healthy Result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded builds a degraded Result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy builds an unhealthy Result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns a copy of r with details attached.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// Checker is anything that can report its health.
type Checker interface {
	// Name identifies this checker.
	Name() string

	// Check runs the health check. It must honor ctx cancellation.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts an ordinary function into a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
