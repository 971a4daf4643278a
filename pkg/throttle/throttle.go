package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// UsageStore is the durable store a Throttle seeds from and flushes into.
type UsageStore interface {
	SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error)
	UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error
}

// Options carries the collaborators of a Throttle. Zero values select the
// system clock, slog.Default, no metrics and the global tracer provider.
type Options struct {
	Clock   Clock
	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Throttle enforces a per-minute rate window, classifies and retries failed
// remote calls, and tracks usage against a monthly quota for one service
// type.
type Throttle struct {
	serviceType string
	cooldown    time.Duration
	longDelay   time.Duration
	maxRetries  int

	store   UsageStore
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	window  *window
	quota   *quota
	pending atomic.Int64

	flushMu   sync.Mutex
	lastFlush time.Time
}

// New creates a Throttle and seeds its monthly usage from store.
func New(ctx context.Context, cfg Config, store UsageStore, opts Options) (*Throttle, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid throttle config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("usage store cannot be nil")
	}

	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("mercator-hq/quotaguard/throttle")
	}

	now := opts.Clock.Now()
	count, err := store.SumUsage(ctx, now.Year(), now.Month(), cfg.ServiceType)
	if err != nil {
		return nil, fmt.Errorf("seed monthly usage for %s: %w", cfg.ServiceType, err)
	}

	t := &Throttle{
		serviceType: cfg.ServiceType,
		cooldown:    cfg.Cooldown,
		longDelay:   cfg.LongDelay,
		maxRetries:  cfg.MaxRetries,
		store:       store,
		clock:       opts.Clock,
		logger:      opts.Logger.With("component", "throttle", "service_type", cfg.ServiceType),
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		window:      newWindow(cfg.Window, cfg.Margin, cfg.PerMinute),
		quota:       newQuota(MonthlyUsage{Year: now.Year(), Month: now.Month(), Count: count}, cfg.PerMonth),
	}

	t.metrics.updateQuota(t.serviceType, count, cfg.PerMonth)
	t.logger.Info("throttle initialized",
		"per_minute", cfg.PerMinute,
		"per_month", cfg.PerMonth,
		"monthly_usage", count,
	)

	return t, nil
}

// ServiceType returns the service type this throttle governs.
func (t *Throttle) ServiceType() string {
	return t.serviceType
}

// Disabled reports whether the monthly quota is exhausted. It is advisory:
// Invoke never refuses a call.
func (t *Throttle) Disabled() bool {
	return t.quota.disabled(t.clock.Now())
}

// TotalTransactions returns the number of transactions recorded since the
// last successful flush.
func (t *Throttle) TotalTransactions() int64 {
	return t.pending.Load()
}

// SetLimits replaces both caps. The current window and monthly count are
// kept.
func (t *Throttle) SetLimits(perMinute int, perMonth int64) error {
	if err := validateLimits(perMinute, perMonth); err != nil {
		return err
	}

	t.window.setPerMinute(perMinute)
	t.quota.setLimit(perMonth)

	usage, _ := t.quota.snapshot(t.clock.Now())
	t.metrics.updateQuota(t.serviceType, usage.Count, perMonth)
	t.logger.Info("limits updated", "per_minute", perMinute, "per_month", perMonth)
	return nil
}

// Limits returns the current caps.
func (t *Throttle) Limits() (perMinute int, perMonth int64) {
	_, limit := t.quota.snapshot(t.clock.Now())
	return t.window.limit(), limit
}

// MonthlySummary describes usage to date, e.g.
// "face: 1234 of 30000 transactions used in 2026-10 (4.1%)".
func (t *Throttle) MonthlySummary() string {
	usage, limit := t.quota.snapshot(t.clock.Now())
	pct := float64(usage.Count) / float64(limit) * 100
	return fmt.Sprintf("%s: %d of %d transactions used in %s (%.1f%%)",
		t.serviceType, usage.Count, limit, usage.Label(), pct)
}

// Usage returns a snapshot of the throttle's counters.
func (t *Throttle) Usage() Snapshot {
	usage, limit := t.quota.snapshot(t.clock.Now())

	t.flushMu.Lock()
	lastFlush := t.lastFlush
	t.flushMu.Unlock()

	return Snapshot{
		ServiceType:  t.serviceType,
		Month:        usage.Label(),
		MonthlyCount: usage.Count,
		MonthlyLimit: limit,
		PerMinute:    t.window.limit(),
		WindowCount:  t.window.current(),
		PendingFlush: t.pending.Load(),
		Disabled:     usage.Count >= limit,
		LastFlush:    lastFlush,
	}
}

// FlushUsage drains the transactions recorded since the last flush into the
// monthly count and the durable daily record for today. When nothing was
// recorded it only stores a pending month rollover. On store failure the
// drained transactions are put back so the next flush retries them.
func (t *Throttle) FlushUsage(ctx context.Context) error {
	t.flushMu.Lock()
	defer t.flushMu.Unlock()

	now := t.clock.Now()
	drained := t.pending.Swap(0)
	if drained == 0 {
		if usage, rolled := t.quota.rollover(now); rolled {
			_, limit := t.quota.snapshot(now)
			t.metrics.updateQuota(t.serviceType, usage.Count, limit)
			t.logger.Info("monthly usage rolled over", "month", usage.Label())
		}
		return nil
	}

	usage := t.quota.add(now, drained)

	if err := t.store.UpsertDailyUsage(ctx, now, t.serviceType, drained); err != nil {
		t.quota.add(now, -drained)
		pending := t.pending.Add(drained)
		t.metrics.recordFlush(t.serviceType, false, pending)
		t.logger.Error("failed to flush usage", "drained", drained, "error", err)
		return fmt.Errorf("flush %d transactions for %s: %w", drained, t.serviceType, err)
	}

	t.lastFlush = now
	_, limit := t.quota.snapshot(now)
	t.metrics.recordFlush(t.serviceType, true, t.pending.Load())
	t.metrics.updateQuota(t.serviceType, usage.Count, limit)
	t.logger.Info("usage flushed",
		"drained", drained,
		"month", usage.Label(),
		"monthly_usage", usage.Count,
		"monthly_limit", limit,
	)
	return nil
}

// recordTransaction counts one successful transaction and, when the current
// window is full, blocks until the next one opens.
func (t *Throttle) recordTransaction(ctx context.Context, description string) error {
	adm := t.window.admit(t.clock.Now())
	pending := t.pending.Add(1)
	t.metrics.recordTransaction(t.serviceType, pending)

	if adm.wait <= 0 {
		return nil
	}

	if adm.wait > t.longDelay {
		t.logger.Warn("transaction rate cap reached, delaying caller",
			"description", description,
			"sleep", adm.wait,
			"capped", adm.capped,
		)
	} else {
		t.logger.Debug("waiting for rate window",
			"description", description,
			"sleep", adm.wait,
		)
	}

	t.metrics.recordWindowSleep(t.serviceType, adm.wait)
	if err := t.clock.Sleep(ctx, adm.wait); err != nil {
		return fmt.Errorf("%s: rate window wait aborted: %w", description, err)
	}
	return nil
}
