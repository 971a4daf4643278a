// Package storage provides persistence backends for daily usage aggregates.
//
// # Overview
//
// A throttle only needs two operations from its durable store: summing the
// usage recorded for a calendar month and incrementing the aggregate for a
// single day. Every backend keeps at most one record per (date, service type)
// pair and increments it on conflict:
//
//   - Memory: in-process map, no persistence (tests, dry runs)
//   - SQLite: file-based persistence using WAL mode
//   - Redis: one hash per service type and month, HINCRBY per day
//   - PostgreSQL: shared persistence for multi-instance deployments
//
// # Usage
//
//	store, err := storage.NewSQLiteStore("usage.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.UpsertDailyUsage(ctx, time.Now(), "face", 12)
//	total, err := store.SumUsage(ctx, 2026, time.October, "face")
//
// # Thread Safety
//
// All backends are safe for concurrent use.
package storage
