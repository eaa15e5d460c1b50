package health

import (
	"context"

	"github.com/apiwire/apiwire/sched"
)

// SchedulerCheckerConfig tunes the scheduler pressure thresholds.
type SchedulerCheckerConfig struct {
	// WaitlistWarning marks the scheduler degraded once this many
	// tasks are waiting. Default: 64.
	WaitlistWarning int

	// WaitlistCritical marks the scheduler unhealthy once this many
	// tasks are waiting. Default: 512.
	WaitlistCritical int
}

// SchedulerChecker reports backlog pressure on one scheduler. The
// scheduler never fails outright, so the check grades its waitlist
// depth against the configured thresholds.
type SchedulerChecker struct {
	cfg SchedulerCheckerConfig
	s   *sched.Scheduler
}

// NewSchedulerChecker wraps s with the given thresholds.
func NewSchedulerChecker(s *sched.Scheduler, config ...SchedulerCheckerConfig) *SchedulerChecker {
	cfg := SchedulerCheckerConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.WaitlistWarning <= 0 {
		cfg.WaitlistWarning = 64
	}
	if cfg.WaitlistCritical <= cfg.WaitlistWarning {
		cfg.WaitlistCritical = 512
		if cfg.WaitlistCritical <= cfg.WaitlistWarning {
			cfg.WaitlistCritical = cfg.WaitlistWarning * 8
		}
	}
	return &SchedulerChecker{cfg: cfg, s: s}
}

func (ck *SchedulerChecker) Name() string { return "sched:" + ck.s.Key() }

func (ck *SchedulerChecker) Check(ctx context.Context) Result {
	waiting := ck.s.WaitlistLen()
	details := map[string]any{
		"key":       ck.s.Key(),
		"limit":     ck.s.ConcurrencyLimit(),
		"in_flight": ck.s.InFlight(),
		"waitlist":  waiting,
	}

	switch {
	case waiting >= ck.cfg.WaitlistCritical:
		return Unhealthy("waitlist critically deep", nil).WithDetails(details)
	case waiting >= ck.cfg.WaitlistWarning:
		return Degraded("waitlist backing up").WithDetails(details)
	default:
		return Healthy("backlog nominal").WithDetails(details)
	}
}
