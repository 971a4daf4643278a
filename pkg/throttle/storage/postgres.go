package storage

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over PostgreSQL.
type PostgresStore struct {
	db      pgExecutor
	table   string
	builder squirrel.StatementBuilderType
	close   func()
}

// PostgresConfig configures a PostgresStore created with OpenPostgres.
type PostgresConfig struct {
	// DSN is the connection string passed to pgxpool.
	DSN string

	// Table is the daily usage table name.
	// Default: "daily_usage"
	Table string

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
}

// NewPostgresStore constructs a store over an existing pool or connection.
func NewPostgresStore(db pgExecutor, table string) *PostgresStore {
	if table == "" {
		table = "daily_usage"
	}
	return &PostgresStore{
		db:      db,
		table:   table,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// OpenPostgres creates a connection pool and ensures the usage table exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := NewPostgresStore(pool, cfg.Table)
	store.close = pool.Close

	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the usage table when it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		usage_date DATE NOT NULL,
		service_type TEXT NOT NULL,
		count BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (usage_date, service_type)
	)`, p.table)

	if _, err := p.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("create usage table: %w", err)
	}
	return nil
}

// SumUsage returns the usage recorded for serviceType in the given month.
func (p *PostgresStore) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	if serviceType == "" {
		return 0, ErrEmptyServiceType
	}

	from, to := monthRange(year, month)
	stmt, args, err := p.builder.Select("COALESCE(SUM(count), 0)::bigint").
		From(p.table).
		Where(squirrel.Eq{"service_type": serviceType}).
		Where(squirrel.GtOrEq{"usage_date": from}).
		Where(squirrel.Lt{"usage_date": to}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum usage sql: %w", err)
	}

	var total int64
	if err := p.db.QueryRow(ctx, stmt, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum usage: %w", err)
	}
	return total, nil
}

// UpsertDailyUsage adds delta to the record for (date, serviceType).
func (p *PostgresStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	if err := validateUpsert(serviceType, delta); err != nil {
		return err
	}

	stmt, args, err := p.builder.Insert(p.table+" AS d").
		Columns("usage_date", "service_type", "count").
		Values(DateKey(date), serviceType, delta).
		Suffix("ON CONFLICT (usage_date, service_type) DO UPDATE SET count = d.count + EXCLUDED.count, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert usage sql: %w", err)
	}

	if _, err := p.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}
	return nil
}

// ListDailyUsage returns the records for serviceType within [from, to].
func (p *PostgresStore) ListDailyUsage(ctx context.Context, serviceType string, from, to time.Time) ([]DailyUsageRecord, error) {
	if serviceType == "" {
		return nil, ErrEmptyServiceType
	}

	stmt, args, err := p.builder.Select("to_char(usage_date, 'YYYY-MM-DD')", "service_type", "count").
		From(p.table).
		Where(squirrel.Eq{"service_type": serviceType}).
		Where(squirrel.GtOrEq{"usage_date": DateKey(from)}).
		Where(squirrel.LtOrEq{"usage_date": DateKey(to)}).
		OrderBy("usage_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list usage sql: %w", err)
	}

	rows, err := p.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily usage: %w", err)
	}
	defer rows.Close()

	records := make([]DailyUsageRecord, 0)
	for rows.Next() {
		var (
			day    string
			record DailyUsageRecord
		)
		if err := rows.Scan(&day, &record.ServiceType, &record.Count); err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		if record.Date, err = ParseDateKey(day); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily usage: %w", err)
	}

	return records, nil
}

// Close releases the pool when the store owns it.
func (p *PostgresStore) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
