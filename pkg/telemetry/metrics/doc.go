// Package metrics owns the Prometheus registry for quotaguard.
//
// A Collector registers the Go runtime and process collectors, the throttle
// metrics (transactions, attempts, cooldowns, window sleeps, flushes and
// monthly quota gauges) and HTTP metrics for the usage API. Handler exposes
// the registry in the Prometheus exposition format.
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics)
//	reg, err := registry.New(ctx, cfg.Services, store, throttle.Options{
//		Metrics: collector.Throttle(),
//	})
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// When metrics are disabled the collector hands out nil metric sets, which
// record nothing.
package metrics
