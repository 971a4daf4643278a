package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical textual form of a usage date.
const DateLayout = "2006-01-02"

var (
	// ErrEmptyServiceType is returned when an operation is called without a service type.
	ErrEmptyServiceType = errors.New("service type cannot be empty")

	// ErrNegativeDelta is returned when an upsert would decrement a daily record.
	ErrNegativeDelta = errors.New("usage delta cannot be negative")
)

// Store defines the interface for daily usage persistence.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// SumUsage returns the total usage recorded for serviceType across every
	// day of the given calendar month. Returns 0 when nothing was recorded.
	SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error)

	// UpsertDailyUsage adds delta to the record for (date, serviceType),
	// inserting it when no record exists yet. Only the calendar date of
	// date is significant.
	UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error

	// ListDailyUsage returns the records for serviceType whose date falls
	// within [from, to], ordered by date.
	ListDailyUsage(ctx context.Context, serviceType string, from, to time.Time) ([]DailyUsageRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// DailyUsageRecord is the durable aggregate for one service type on one day.
type DailyUsageRecord struct {
	// Date is the calendar day, at midnight UTC.
	Date time.Time `json:"date"`

	// ServiceType names the quota this record counts against.
	ServiceType string `json:"service_type"`

	// Count is the number of transactions recorded on Date.
	Count int64 `json:"count"`
}

// DateKey formats the calendar date of t.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a date produced by DateKey into midnight UTC.
func ParseDateKey(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid usage date %q: %w", s, err)
	}
	return d, nil
}

// monthRange returns the first day of the month and the first day of the
// following month, both as date keys.
func monthRange(year int, month time.Month) (string, string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateKey(start), DateKey(start.AddDate(0, 1, 0))
}

func validateUpsert(serviceType string, delta int64) error {
	if serviceType == "" {
		return ErrEmptyServiceType
	}
	if delta < 0 {
		return ErrNegativeDelta
	}
	return nil
}
