package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory storage.
// All data is lost when the process exits.
//
// MemoryStore is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryStore struct {
	// records maps service type to date key to count.
	records map[string]map[string]int64

	mu sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]int64),
	}
}

// SumUsage returns the usage recorded for serviceType in the given month.
func (m *MemoryStore) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	if serviceType == "" {
		return 0, ErrEmptyServiceType
	}

	from, to := monthRange(year, month)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for day, count := range m.records[serviceType] {
		if day >= from && day < to {
			total += count
		}
	}
	return total, nil
}

// UpsertDailyUsage adds delta to the record for (date, serviceType).
func (m *MemoryStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	if err := validateUpsert(serviceType, delta); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	days, ok := m.records[serviceType]
	if !ok {
		days = make(map[string]int64)
		m.records[serviceType] = days
	}
	days[DateKey(date)] += delta
	return nil
}

// ListDailyUsage returns the records for serviceType within [from, to].
func (m *MemoryStore) ListDailyUsage(ctx context.Context, serviceType string, from, to time.Time) ([]DailyUsageRecord, error) {
	if serviceType == "" {
		return nil, ErrEmptyServiceType
	}

	lo, hi := DateKey(from), DateKey(to)

	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]DailyUsageRecord, 0)
	for day, count := range m.records[serviceType] {
		if day < lo || day > hi {
			continue
		}
		d, err := ParseDateKey(day)
		if err != nil {
			return nil, err
		}
		records = append(records, DailyUsageRecord{Date: d, ServiceType: serviceType, Count: count})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
