package metrics

import (
	"strconv"
	"time"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/throttle"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector groups every metric the process exports.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry
	throttle *throttle.Metrics
	http     *HTTPMetrics
}

// HTTPMetrics records requests served by the usage API. A nil *HTTPMetrics
// records nothing.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector creates a collector with a private registry.
func NewCollector(cfg config.MetricsConfig) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		enabled:  cfg.IsEnabled(),
		registry: registry,
	}
	if !c.enabled {
		return c
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.throttle = throttle.NewMetrics(registry)
	c.http = newHTTPMetrics(registry)
	return c
}

func newHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotaguard_http_requests_total",
				Help: "Total number of HTTP requests served by route and status code",
			},
			[]string{"route", "method", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotaguard_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

// Enabled reports whether metrics are collected.
func (c *Collector) Enabled() bool {
	return c.enabled
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Throttle returns the metric set shared by all throttles, or nil when
// metrics are disabled.
func (c *Collector) Throttle() *throttle.Metrics {
	return c.throttle
}

// HTTP returns the HTTP metric set, or nil when metrics are disabled.
func (c *Collector) HTTP() *HTTPMetrics {
	return c.http
}

// Observe records one served request.
func (m *HTTPMetrics) Observe(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
