package throttle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for throttles. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	cooldowns    *prometheus.CounterVec
	windowSleeps *prometheus.HistogramVec
	flushes      *prometheus.CounterVec

	pending      *prometheus.GaugeVec
	monthlyUsage *prometheus.GaugeVec
	monthlyLimit *prometheus.GaugeVec
	disabled     *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotaguard_transactions_total",
				Help: "Total number of successful remote transactions recorded",
			},
			[]string{"service_type"},
		),

		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotaguard_attempts_total",
				Help: "Total number of remote call attempts by outcome",
			},
			[]string{"service_type", "outcome"},
		),

		cooldowns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotaguard_cooldowns_total",
				Help: "Total number of cooldown sleeps after rate-limited attempts",
			},
			[]string{"service_type"},
		),

		windowSleeps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotaguard_window_sleep_seconds",
				Help:    "Time callers spent waiting for a rate window to open",
				Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 65, 90, 130},
			},
			[]string{"service_type"},
		),

		flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotaguard_flushes_total",
				Help: "Total number of usage flushes by result",
			},
			[]string{"service_type", "result"},
		),

		pending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotaguard_pending_transactions",
				Help: "Transactions recorded since the last successful flush",
			},
			[]string{"service_type"},
		),

		monthlyUsage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotaguard_monthly_usage",
				Help: "Transactions counted against the current monthly quota",
			},
			[]string{"service_type"},
		),

		monthlyLimit: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotaguard_monthly_limit",
				Help: "Configured monthly quota",
			},
			[]string{"service_type"},
		),

		disabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotaguard_disabled",
				Help: "1 when the monthly quota is exhausted",
			},
			[]string{"service_type"},
		),
	}
}

func (m *Metrics) recordTransaction(serviceType string, pending int64) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(serviceType).Inc()
	m.pending.WithLabelValues(serviceType).Set(float64(pending))
}

func (m *Metrics) recordAttempt(serviceType string, kind Kind, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = kind.String()
	}
	m.attempts.WithLabelValues(serviceType, outcome).Inc()
}

func (m *Metrics) recordCooldown(serviceType string) {
	if m == nil {
		return
	}
	m.cooldowns.WithLabelValues(serviceType).Inc()
}

func (m *Metrics) recordWindowSleep(serviceType string, d time.Duration) {
	if m == nil {
		return
	}
	m.windowSleeps.WithLabelValues(serviceType).Observe(d.Seconds())
}

func (m *Metrics) recordFlush(serviceType string, ok bool, pending int64) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	m.flushes.WithLabelValues(serviceType, result).Inc()
	m.pending.WithLabelValues(serviceType).Set(float64(pending))
}

func (m *Metrics) updateQuota(serviceType string, usage, limit int64) {
	if m == nil {
		return
	}
	m.monthlyUsage.WithLabelValues(serviceType).Set(float64(usage))
	m.monthlyLimit.WithLabelValues(serviceType).Set(float64(limit))
	disabled := 0.0
	if usage >= limit {
		disabled = 1
	}
	m.disabled.WithLabelValues(serviceType).Set(disabled)
}
