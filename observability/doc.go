// Package observability wires OpenTelemetry tracing and metrics.
//
//	shutdown, err := observability.Init(ctx, cfg, log)
//	defer shutdown(context.Background())
//
//	ctx, span := observability.StartSpan(ctx, "storage.upload")
//	defer span.End()
//
// When telemetry is disabled the global no-op providers stay in place, so
// StartSpan and Metrics remain safe to call.
package observability
