package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"

	miniredis "github.com/alicebob/miniredis/v2"
)

var testStart = time.Date(2026, time.October, 18, 9, 0, 0, 0, time.UTC)

func testServices() map[string]config.ServiceConfig {
	return map[string]config.ServiceConfig{
		"face": {PerMinute: 20, PerMonth: 30000},
		"ocr":  {PerMinute: 5, PerMonth: 100},
	}
}

func newTestRegistry(t *testing.T, store storage.Store) (*Registry, *throttle.ManualClock) {
	t.Helper()

	if store == nil {
		store = storage.NewMemoryStore()
	}
	clock := throttle.NewManualClock(testStart)
	reg, err := New(context.Background(), testServices(), store, throttle.Options{
		Clock:  clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return reg, clock
}

func invokeN(t *testing.T, th *throttle.Throttle, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := throttle.Invoke(context.Background(), th, "test call", func(context.Context) (int, error) {
			return 1, nil
		})
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
	}
}

func TestNew_NilStore(t *testing.T) {
	if _, err := New(context.Background(), testServices(), nil, throttle.Options{}); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestNew_InvalidService(t *testing.T) {
	services := map[string]config.ServiceConfig{"face": {PerMinute: 0, PerMonth: 10}}
	if _, err := New(context.Background(), services, storage.NewMemoryStore(), throttle.Options{}); err == nil {
		t.Fatal("expected error for invalid service")
	}
}

func TestNew_SeedsFromStore(t *testing.T) {
	store := storage.NewMemoryStore()
	if err := store.UpsertDailyUsage(context.Background(), testStart.AddDate(0, 0, -3), "ocr", 42); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	reg, _ := newTestRegistry(t, store)
	th, err := reg.Get("ocr")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := th.Usage().MonthlyCount; got != 42 {
		t.Errorf("expected 42 seeded transactions, got %d", got)
	}
	if got := th.TotalTransactions(); got != 0 {
		t.Errorf("expected nothing pending, got %d", got)
	}
}

func TestGet(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	th, err := reg.Get("face")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if th.ServiceType() != "face" {
		t.Errorf("expected service type face, got %q", th.ServiceType())
	}

	_, err = reg.Get("voice")
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

func TestServiceTypes(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	names := reg.ServiceTypes()
	if len(names) != 2 || names[0] != "face" || names[1] != "ocr" {
		t.Errorf("expected [face ocr], got %v", names)
	}
}

func TestFlushAll(t *testing.T) {
	store := storage.NewMemoryStore()
	reg, _ := newTestRegistry(t, store)

	face, _ := reg.Get("face")
	ocr, _ := reg.Get("ocr")
	invokeN(t, face, 3)
	invokeN(t, ocr, 2)

	if err := reg.FlushAll(context.Background()); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}

	for st, want := range map[string]int64{"face": 3, "ocr": 2} {
		got, err := store.SumUsage(context.Background(), 2026, time.October, st)
		if err != nil {
			t.Fatalf("SumUsage failed: %v", err)
		}
		if got != want {
			t.Errorf("%s: expected %d stored, got %d", st, want, got)
		}
	}

	snaps := reg.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].ServiceType != "face" || snaps[0].MonthlyCount != 3 || snaps[0].PendingFlush != 0 {
		t.Errorf("unexpected face snapshot: %+v", snaps[0])
	}
}

// brokenStore fails upserts for one service type.
type brokenStore struct {
	*storage.MemoryStore
	failing string
}

func (s *brokenStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	if serviceType == s.failing {
		return errors.New("disk full")
	}
	return s.MemoryStore.UpsertDailyUsage(ctx, date, serviceType, delta)
}

func TestFlushAll_ContinuesAfterFailure(t *testing.T) {
	store := &brokenStore{MemoryStore: storage.NewMemoryStore(), failing: "face"}
	reg, _ := newTestRegistry(t, store)

	face, _ := reg.Get("face")
	ocr, _ := reg.Get("ocr")
	invokeN(t, face, 1)
	invokeN(t, ocr, 4)

	err := reg.FlushAll(context.Background())
	if err == nil {
		t.Fatal("expected flush error")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped store error, got %v", err)
	}

	got, _ := store.SumUsage(context.Background(), 2026, time.October, "ocr")
	if got != 4 {
		t.Errorf("expected ocr flushed despite face failure, got %d", got)
	}
	if pending := face.Usage().PendingFlush; pending != 1 {
		t.Errorf("expected face pending restored to 1, got %d", pending)
	}
}

func TestSummaries(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	lines := reg.Summaries()
	if len(lines) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(lines))
	}
	if lines[1] != "ocr: 0 of 100 transactions used in 2026-10 (0.0%)" {
		t.Errorf("unexpected summary %q", lines[1])
	}
}

func TestHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	_ = store.UpsertDailyUsage(ctx, testStart.AddDate(0, 0, -1), "face", 7)
	_ = store.UpsertDailyUsage(ctx, testStart, "face", 2)

	reg, _ := newTestRegistry(t, store)

	records, err := reg.History(ctx, "face", testStart.AddDate(0, 0, -7), testStart)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 2 || records[0].Count != 7 || records[1].Count != 2 {
		t.Errorf("unexpected records: %+v", records)
	}

	if _, err := reg.History(ctx, "voice", testStart, testStart); !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

func TestApplyLimits(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	face, _ := reg.Get("face")
	invokeN(t, face, 2)

	updated := map[string]config.ServiceConfig{
		"face":  {PerMinute: 40, PerMonth: 60000},
		"voice": {PerMinute: 1, PerMonth: 10},
	}
	if err := reg.ApplyLimits(context.Background(), updated); err != nil {
		t.Fatalf("ApplyLimits failed: %v", err)
	}

	perMinute, perMonth := face.Limits()
	if perMinute != 40 || perMonth != 60000 {
		t.Errorf("expected limits 40/60000, got %d/%d", perMinute, perMonth)
	}
	if face.Usage().PendingFlush != 2 {
		t.Errorf("expected counters preserved, got pending %d", face.Usage().PendingFlush)
	}

	if _, err := reg.Get("voice"); err != nil {
		t.Errorf("expected new service registered, got %v", err)
	}
	// ocr was dropped from the config but is kept until restart
	if _, err := reg.Get("ocr"); err != nil {
		t.Errorf("expected removed service kept, got %v", err)
	}
}

// slowSeedStore blocks SumUsage for one service type until released.
type slowSeedStore struct {
	*storage.MemoryStore

	serviceType string
	entered     chan struct{}
	release     chan struct{}
}

func (s *slowSeedStore) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	if serviceType == s.serviceType {
		close(s.entered)
		<-s.release
	}
	return s.MemoryStore.SumUsage(ctx, year, month, serviceType)
}

func TestApplyLimits_SeedsWithoutBlockingReaders(t *testing.T) {
	store := &slowSeedStore{
		MemoryStore: storage.NewMemoryStore(),
		serviceType: "voice",
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	reg, _ := newTestRegistry(t, store)

	applied := make(chan error, 1)
	go func() {
		applied <- reg.ApplyLimits(context.Background(), map[string]config.ServiceConfig{
			"face":  {PerMinute: 20, PerMonth: 30000},
			"voice": {PerMinute: 1, PerMonth: 10},
		})
	}()
	<-store.entered

	read := make(chan int, 1)
	go func() { read <- len(reg.Snapshots()) }()
	select {
	case n := <-read:
		if n != 2 {
			t.Errorf("expected 2 services while voice seeds, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshots blocked while a new service was seeding from the store")
	}

	close(store.release)
	if err := <-applied; err != nil {
		t.Fatalf("ApplyLimits failed: %v", err)
	}
	if _, err := reg.Get("voice"); err != nil {
		t.Errorf("expected voice registered, got %v", err)
	}
}

func TestApplyLimits_Invalid(t *testing.T) {
	reg, _ := newTestRegistry(t, nil)

	err := reg.ApplyLimits(context.Background(), map[string]config.ServiceConfig{
		"face": {PerMinute: -1, PerMonth: 10},
	})
	if err == nil {
		t.Fatal("expected error for invalid limits")
	}

	face, _ := reg.Get("face")
	if perMinute, _ := face.Limits(); perMinute != 20 {
		t.Errorf("expected old limit kept, got %d", perMinute)
	}
}

func TestRemoteClient(t *testing.T) {
	var (
		mu      sync.Mutex
		gotAuth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("X-Api-Key")
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	services := map[string]config.ServiceConfig{
		"face": {
			PerMinute: 20,
			PerMonth:  30000,
			Remote:    &config.RemoteConfig{BaseURL: srv.URL, APIKey: "secret", APIKeyHeader: "X-Api-Key"},
		},
		"ocr": {PerMinute: 5, PerMonth: 100},
	}
	reg, err := New(context.Background(), services, storage.NewMemoryStore(), throttle.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	client, err := reg.RemoteClient("face")
	if err != nil {
		t.Fatalf("RemoteClient failed: %v", err)
	}
	if _, err := client.Do(context.Background(), http.MethodGet, "/match", nil); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAuth != "secret" {
		t.Errorf("expected api key header, got %q", gotAuth)
	}

	if _, err := reg.RemoteClient("ocr"); err == nil {
		t.Error("expected error for service without remote")
	}
	if _, err := reg.RemoteClient("voice"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("expected ErrUnknownService, got %v", err)
	}
}

// monthRecorder remembers the month of the last SumUsage call.
type monthRecorder struct {
	*storage.MemoryStore

	mu    sync.Mutex
	year  int
	month time.Month
}

func (s *monthRecorder) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	s.mu.Lock()
	s.year, s.month = year, month
	s.mu.Unlock()
	return s.MemoryStore.SumUsage(ctx, year, month, serviceType)
}

func TestPing(t *testing.T) {
	store := &monthRecorder{MemoryStore: storage.NewMemoryStore()}
	reg, clock := newTestRegistry(t, store)

	clock.Set(time.Date(2027, time.February, 2, 0, 0, 0, 0, time.UTC))
	if err := reg.Ping(context.Background()); err != nil {
		t.Errorf("expected ping to succeed, got %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.year != 2027 || store.month != time.February {
		t.Errorf("expected ping to query the clock's month 2027-02, got %d-%02d", store.year, int(store.month))
	}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Backend: "memory"}},
		{
			name: "sqlite",
			cfg: config.StorageConfig{
				Backend: "sqlite",
				SQLite:  config.SQLiteConfig{Path: t.TempDir() + "/usage.db", Driver: "sqlite"},
			},
		},
		{
			name: "redis",
			cfg: config.StorageConfig{
				Backend: "redis",
				Redis:   config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "test"},
			},
		},
		{name: "sqlite without path", cfg: config.StorageConfig{Backend: "sqlite"}, wantErr: true},
		{name: "postgres without dsn", cfg: config.StorageConfig{Backend: "postgres"}, wantErr: true},
		{name: "unknown", cfg: config.StorageConfig{Backend: "mongo"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := OpenStore(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				store.Close()
			}
		})
	}
}
