package registry

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/throttle/storage"
)

// OpenStore creates the usage store selected by cfg.Backend.
//
// Supported backends:
//   - "memory": in-process, lost on exit
//   - "sqlite": local file, pure Go or cgo driver
//   - "redis": one hash per service type and month
//   - "postgres": daily_usage table over a pgx pool
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	slog.Debug("opening usage store", "backend", cfg.Backend)

	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil

	case "sqlite", "":
		store, err := storage.NewSQLiteStoreWithConfig(storage.SQLiteConfig{
			Path:             cfg.SQLite.Path,
			Driver:           cfg.SQLite.Driver,
			SnapshotInterval: cfg.SQLite.SnapshotInterval,
			BusyTimeout:      cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store %q: %w", cfg.SQLite.Path, err)
		}
		return store, nil

	case "redis":
		store, err := storage.OpenRedis(ctx, storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store %q: %w", cfg.Redis.Addr, err)
		}
		return store, nil

	case "postgres":
		store, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			Table:    cfg.Postgres.Table,
			MaxConns: cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage backend: %q (supported: memory, sqlite, redis, postgres)", cfg.Backend)
	}
}
