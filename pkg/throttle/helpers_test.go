package throttle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"mercator-hq/quotaguard/pkg/throttle/storage"
)

var errRateLimited = errors.New("429 too many requests")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestThrottle(t *testing.T, cfg Config, store UsageStore, clock *ManualClock) *Throttle {
	t.Helper()

	if cfg.ServiceType == "" {
		cfg.ServiceType = "face"
	}
	if cfg.PerMinute == 0 {
		cfg.PerMinute = 20
	}
	if cfg.PerMonth == 0 {
		cfg.PerMonth = 30000
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	th, err := New(context.Background(), cfg, store, Options{
		Clock:  clock,
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return th
}

// failingStore fails every upsert until healed.
type failingStore struct {
	*storage.MemoryStore

	mu     sync.Mutex
	broken bool
}

func (s *failingStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return errors.New("store unavailable")
	}
	return s.MemoryStore.UpsertDailyUsage(ctx, date, serviceType, delta)
}

func (s *failingStore) heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = false
}
