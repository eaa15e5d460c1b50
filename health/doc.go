// Package health reports the liveness of apiwire components.
//
// A Checker inspects one component and returns a Result with one of
// three statuses: healthy, degraded, or unhealthy. The package ships
// checkers for the two stateful pieces of the library, the resilient
// connection (ConnChecker) and the task scheduler (SchedulerChecker),
// plus an Aggregator that fans checks out and folds their statuses into
// one.
//
// # Basic Usage
//
//	agg := health.NewAggregator()
//	agg.Register("conn", health.NewConnChecker(c))
//	agg.Register("sched", health.NewSchedulerChecker(q, health.SchedulerCheckerConfig{
//	    WaitlistWarning: 100,
//	}))
//
//	results := agg.CheckAll(ctx)
//	if agg.OverallStatus(results) != health.StatusHealthy {
//	    // shed load, alert, etc.
//	}
//
// # HTTP Probes
//
// The handlers map directly to Kubernetes-style probes:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//	// /healthz  liveness, always 200 while the process runs
//	// /readyz   readiness, 503 when any check is unhealthy
//	// /health   full JSON detail per component
package health
