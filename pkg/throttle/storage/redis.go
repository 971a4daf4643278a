package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on top of Redis.
//
// Each (service type, month) pair is one hash keyed
// "<prefix>:<service type>:<YYYY-MM>" whose fields are date keys and whose
// values are daily counts, so a monthly sum is a single HVALS.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisConfig configures a RedisStore created with OpenRedis.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates with the server. Empty disables AUTH.
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces every key written by the store.
	// Default: "quotaguard:usage"
	KeyPrefix string
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "quotaguard:usage"
	}
	return &RedisStore{client: client, prefix: keyPrefix}
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStore(client, cfg.KeyPrefix), nil
}

func (r *RedisStore) monthKey(serviceType string, year int, month time.Month) string {
	return fmt.Sprintf("%s:%s:%04d-%02d", r.prefix, serviceType, year, int(month))
}

// SumUsage returns the usage recorded for serviceType in the given month.
func (r *RedisStore) SumUsage(ctx context.Context, year int, month time.Month, serviceType string) (int64, error) {
	if serviceType == "" {
		return 0, ErrEmptyServiceType
	}

	values, err := r.client.HVals(ctx, r.monthKey(serviceType, year, month)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}

	var total int64
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid usage count %q: %w", v, err)
		}
		total += n
	}
	return total, nil
}

// UpsertDailyUsage adds delta to the record for (date, serviceType).
func (r *RedisStore) UpsertDailyUsage(ctx context.Context, date time.Time, serviceType string, delta int64) error {
	if err := validateUpsert(serviceType, delta); err != nil {
		return err
	}

	key := r.monthKey(serviceType, date.Year(), date.Month())
	if err := r.client.HIncrBy(ctx, key, DateKey(date), delta).Err(); err != nil {
		return fmt.Errorf("failed to upsert daily usage: %w", err)
	}
	return nil
}

// ListDailyUsage returns the records for serviceType within [from, to].
func (r *RedisStore) ListDailyUsage(ctx context.Context, serviceType string, from, to time.Time) ([]DailyUsageRecord, error) {
	if serviceType == "" {
		return nil, ErrEmptyServiceType
	}

	lo, hi := DateKey(from), DateKey(to)
	records := make([]DailyUsageRecord, 0)

	cursor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		fields, err := r.client.HGetAll(ctx, r.monthKey(serviceType, cursor.Year(), cursor.Month())).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list daily usage: %w", err)
		}
		for day, v := range fields {
			if day < lo || day > hi {
				continue
			}
			d, err := ParseDateKey(day)
			if err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid usage count %q: %w", v, err)
			}
			records = append(records, DailyUsageRecord{Date: d, ServiceType: serviceType, Count: n})
		}
		cursor = cursor.AddDate(0, 1, 0)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	return records, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
