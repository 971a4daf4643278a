// Package telemetry groups the observability packages of quotaguard.
//
//   - logging: log/slog setup and request-scoped log fields
//   - metrics: Prometheus registry, throttle and HTTP metrics
//   - tracing: OpenTelemetry tracer provider and OTLP export
//   - health: liveness and readiness probes
package telemetry
