package throttle

import (
	"fmt"
	"time"
)

// Kind classifies the failure of a single remote call attempt.
type Kind int

const (
	// KindOther marks errors the throttle does not handle. They are returned
	// to the caller on the first attempt.
	KindOther Kind = iota

	// KindRateLimited marks transient capacity errors (HTTP 429 and
	// equivalents). They are retried after a cooldown.
	KindRateLimited

	// KindStructuralInvalid marks requests that can never succeed, such as
	// exceeding a per-call item ceiling. They are swallowed and yield the
	// zero result.
	KindStructuralInvalid
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindStructuralInvalid:
		return "structural_invalid"
	default:
		return "other"
	}
}

const (
	// DefaultWindow is the length of a fixed rate window.
	DefaultWindow = 60 * time.Second

	// DefaultMargin is added to every window-cap sleep to stay clear of the
	// remote service's own window boundary.
	DefaultMargin = 5 * time.Second

	// DefaultLongDelay is the sleep above which a warning is logged.
	DefaultLongDelay = 10 * time.Second

	// DefaultCooldown is the pause after a rate-limited attempt.
	DefaultCooldown = 30 * time.Second

	// DefaultMaxRetries is the attempt budget of a single Invoke.
	DefaultMaxRetries = 3
)

// Config configures a Throttle.
type Config struct {
	// ServiceType names the quota this throttle governs.
	ServiceType string

	// PerMinute is the maximum number of transactions per window.
	PerMinute int

	// PerMonth is the monthly quota reported through Disabled.
	PerMonth int64

	// Window is the fixed window length.
	// Default: 60s
	Window time.Duration

	// Margin is added to every window-cap sleep.
	// Default: 5s
	Margin time.Duration

	// LongDelay is the sleep above which a warning is logged.
	// Default: 10s
	LongDelay time.Duration

	// Cooldown is the pause after a rate-limited attempt.
	// Default: 30s
	Cooldown time.Duration

	// MaxRetries is the number of attempts a single Invoke may make.
	// Default: 3
	MaxRetries int
}

// ApplyDefaults fills zero-valued tuning fields.
func (c *Config) ApplyDefaults() {
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Margin == 0 {
		c.Margin = DefaultMargin
	}
	if c.LongDelay == 0 {
		c.LongDelay = DefaultLongDelay
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.ServiceType == "" {
		return fmt.Errorf("service type cannot be empty")
	}
	if err := validateLimits(c.PerMinute, c.PerMonth); err != nil {
		return err
	}
	if c.Window <= 0 || c.Margin < 0 || c.LongDelay < 0 || c.Cooldown < 0 {
		return fmt.Errorf("durations must not be negative and window must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries)
	}
	return nil
}

func validateLimits(perMinute int, perMonth int64) error {
	if perMinute <= 0 {
		return &LimitError{Field: "per_minute", Value: int64(perMinute)}
	}
	if perMonth <= 0 {
		return &LimitError{Field: "per_month", Value: perMonth}
	}
	return nil
}

// MonthlyUsage is the running usage of one calendar month.
type MonthlyUsage struct {
	Year  int
	Month time.Month
	Count int64
}

// Label formats the month as YYYY-MM.
func (u MonthlyUsage) Label() string {
	return fmt.Sprintf("%04d-%02d", u.Year, int(u.Month))
}

// Snapshot is a point-in-time view of a throttle's counters.
type Snapshot struct {
	ServiceType  string    `json:"service_type"`
	Month        string    `json:"month"`
	MonthlyCount int64     `json:"monthly_count"`
	MonthlyLimit int64     `json:"monthly_limit"`
	PerMinute    int       `json:"per_minute"`
	WindowCount  int       `json:"window_count"`
	PendingFlush int64     `json:"pending_flush"`
	Disabled     bool      `json:"disabled"`
	LastFlush    time.Time `json:"last_flush,omitempty"`
}
