// Package observe provides the telemetry layer for the apiwire core:
// structured logging, OpenTelemetry tracing, and OpenTelemetry metrics.
//
// The package exposes a single Observer bootstrap that wires up a tracer,
// a meter, and a logger from one Config, plus exporter factories under
// observe/exporters (OTLP gRPC, Prometheus, stdout).
//
// The Logger interface is the logging contract used across the module;
// the scheduler and connection packages accept one and default to a no-op
// logger when none is supplied.
//
// # Usage
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "my-client",
//	    Version:     "1.4.0",
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer obs.Shutdown(ctx)
//
//	log := obs.Logger()
//	log.Info(ctx, "client starting", observe.String("version", "1.4.0"))
package observe
