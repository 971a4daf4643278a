// Package server exposes the throttle registry over HTTP.
//
// The server answers liveness and readiness probes, reports usage snapshots
// and daily history per service type, triggers usage flushes on demand and
// serves Prometheus metrics. Every request passes through the same middleware
// chain:
//
//	recovery -> request ID -> tracing -> logging -> routes
//
// Routes:
//
//	GET  /health                        liveness
//	GET  /ready                         readiness (503 when a check fails)
//	GET  /version                       build information
//	GET  /v1/usage                      snapshots of every service type
//	GET  /v1/usage/{service}            snapshot of one service type
//	GET  /v1/usage/{service}/history    daily records, ?from=&to= (YYYY-MM-DD)
//	POST /v1/usage/flush                flush pending usage of every service type
//	GET  /metrics                       Prometheus exposition (path configurable)
//
// Basic usage:
//
//	srv := server.New(cfg.Server, server.Options{
//	    Usage:       reg,
//	    Health:      checker,
//	    Metrics:     collector,
//	    MetricsPath: cfg.Telemetry.Metrics.Path,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start blocks until ctx is cancelled or the listener fails, then shuts the
// server down gracefully within the configured shutdown timeout.
package server
