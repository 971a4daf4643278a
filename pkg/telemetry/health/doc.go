// Package health provides liveness and readiness probes for quotaguard.
//
//   - /health: the process is up
//   - /ready: every registered component check passes (usage store
//     reachable, flush scheduler running)
//   - /version: build information
//
// Checks run concurrently with a per-check timeout. A failing or slow check
// turns readiness into "degraded" and the handler answers 503.
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("store", registry.Ping)
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
