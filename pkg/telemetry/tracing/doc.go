// Package tracing sets up OpenTelemetry tracing for quotaguard.
//
// When enabled, spans are exported over OTLP/gRPC in batches and the W3C
// Trace Context propagator is installed globally so that the HTTP server can
// continue traces started by callers. Each throttled call produces a
// "throttle.invoke" span with one event per attempt.
//
// # Sampling Strategies
//
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
//   - parent_based: follow the caller's decision, else sample by ratio
//
// # Usage
//
//	tracer, err := tracing.New(cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// When tracing is disabled New returns a Tracer backed by a no-op provider.
package tracing
