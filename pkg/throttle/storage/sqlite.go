package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

const (
	// DriverModernc selects the pure Go SQLite driver.
	DriverModernc = "sqlite"

	// DriverCGO selects the cgo SQLite driver.
	DriverCGO = "sqlite3"
)

// SQLiteStore implements Store using SQLite for persistence.
// It is suitable for single-instance deployments where usage must survive
// restarts.
//
// SQLiteStore uses a write-ahead log (WAL) and checkpoints it periodically.
type SQLiteStore struct {
	db               *sql.DB
	dbPath           string
	snapshotInterval time.Duration
	done             chan struct{}
	closeOnce        sync.Once

	upsertStmt *sql.Stmt
	sumStmt    *sql.Stmt
	listStmt   *sql.Stmt
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// Driver is the database/sql driver name: "sqlite" (pure Go) or
	// "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a new SQLite store with default settings.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{Path: path})
}

// NewSQLiteStoreWithConfig creates a new SQLite store with custom configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:               db,
		dbPath:           cfg.Path,
		snapshotInterval: cfg.SnapshotInterval,
		done:             make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go store.checkpointLoop()

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS daily_usage (
		usage_date TEXT NOT NULL,
		service_type TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (usage_date, service_type)
	);

	CREATE INDEX IF NOT EXISTS idx_daily_usage_service ON daily_usage(service_type, usage_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO daily_usage (usage_date, service_type, count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (usage_date, service_type) DO UPDATE SET
			count = daily_usage.count + excluded.count,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.sumStmt, err = s.db.Prepare(`
		SELECT COALESCE(SUM(count), 0)
		FROM daily_usage
		WHERE service_type = ? AND usage_date >= ? AND usage_date < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sum statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT usage_date, service_type, count
		FROM daily_usage
		WHERE service_type = ? AND usage_date >= ? AND usage_date <= ?
		ORDER BY usage_date
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// SumUsage returns the usage recorded for serviceType in the given month.
func (s *SQLiteStore) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	if serviceType == "" {
		return 0, ErrEmptyServiceType
	}

	from, to := monthRange(year, month)

	var total int64
	if err := s.sumStmt.QueryRowContext(ctx, serviceType, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// UpsertDailyUsage adds delta to the record for (date, serviceType).
func (s *SQLiteStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	if err := validateUpsert(serviceType, delta); err != nil {
		return err
	}

	_, err := s.upsertStmt.ExecContext(ctx, DateKey(date), serviceType, delta, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert daily usage: %w", err)
	}
	return nil
}

// ListDailyUsage returns the records for serviceType within [from, to].
func (s *SQLiteStore) ListDailyUsage(ctx context.Context, serviceType string, from, to time.Time) ([]DailyUsageRecord, error) {
	if serviceType == "" {
		return nil, ErrEmptyServiceType
	}

	rows, err := s.listStmt.QueryContext(ctx, serviceType, DateKey(from), DateKey(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily usage: %w", err)
	}
	defer rows.Close()

	records := make([]DailyUsageRecord, 0)
	for rows.Next() {
		var (
			day    string
			record DailyUsageRecord
		)
		if err := rows.Scan(&day, &record.ServiceType, &record.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if record.Date, err = ParseDateKey(day); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// Close releases the database handle.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{s.upsertStmt, s.sumStmt, s.listStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}
