package config

import (
	"time"

	"mercator-hq/quotaguard/pkg/throttle"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Remote defaults
	DefaultRemoteAPIKeyHeader = "Authorization"
	DefaultRemoteTimeout      = 30 * time.Second

	// Storage defaults
	DefaultStorageBackend               = "sqlite"
	DefaultSQLitePath                   = "data/usage.db"
	DefaultSQLiteDriver                 = "sqlite"
	DefaultSQLiteBusyTimeout            = 5 * time.Second
	DefaultSQLiteSnapshotInterval       = 5 * time.Minute
	DefaultRedisAddr                    = "localhost:6379"
	DefaultRedisKeyPrefix               = "quotaguard:usage"
	DefaultPostgresTable                = "daily_usage"
	DefaultPostgresMaxConns       int32 = 4

	// Flush defaults
	DefaultFlushSchedule = "*/15 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultPrometheusPath      = "/metrics"
	DefaultTracingServiceName  = "quotaguard"
	DefaultTracingSampler      = "parent_based"
	DefaultTracingSamplingRate = 1.0

	// Watch defaults
	DefaultWatchDebounce = 500 * time.Millisecond
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Service defaults - applied to each service
	for name, svc := range cfg.Services {
		applyServiceDefaults(&svc)
		cfg.Services[name] = svc
	}

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DefaultSQLitePath
	}
	if cfg.Storage.SQLite.Driver == "" {
		cfg.Storage.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.Storage.SQLite.BusyTimeout == 0 {
		cfg.Storage.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Storage.SQLite.SnapshotInterval == 0 {
		cfg.Storage.SQLite.SnapshotInterval = DefaultSQLiteSnapshotInterval
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Storage.Redis.KeyPrefix == "" {
		cfg.Storage.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Storage.Postgres.Table == "" {
		cfg.Storage.Postgres.Table = DefaultPostgresTable
	}
	if cfg.Storage.Postgres.MaxConns == 0 {
		cfg.Storage.Postgres.MaxConns = DefaultPostgresMaxConns
	}

	// Flush defaults
	if cfg.Flush.Schedule == "" {
		cfg.Flush.Schedule = DefaultFlushSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}

	// Watch defaults
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}

func applyServiceDefaults(svc *ServiceConfig) {
	if svc.Window == 0 {
		svc.Window = throttle.DefaultWindow
	}
	if svc.Margin == 0 {
		svc.Margin = throttle.DefaultMargin
	}
	if svc.LongDelay == 0 {
		svc.LongDelay = throttle.DefaultLongDelay
	}
	if svc.Cooldown == 0 {
		svc.Cooldown = throttle.DefaultCooldown
	}
	if svc.MaxRetries == 0 {
		svc.MaxRetries = throttle.DefaultMaxRetries
	}

	if svc.Remote != nil {
		if svc.Remote.APIKeyHeader == "" {
			svc.Remote.APIKeyHeader = DefaultRemoteAPIKeyHeader
		}
		if svc.Remote.Timeout == 0 {
			svc.Remote.Timeout = DefaultRemoteTimeout
		}
	}
}

// ThrottleConfig converts the service entry named serviceType into a
// throttle configuration.
func (s ServiceConfig) ThrottleConfig(serviceType string) throttle.Config {
	return throttle.Config{
		ServiceType: serviceType,
		PerMinute:   s.PerMinute,
		PerMonth:    s.PerMonth,
		Window:      s.Window,
		Margin:      s.Margin,
		LongDelay:   s.LongDelay,
		Cooldown:    s.Cooldown,
		MaxRetries:  s.MaxRetries,
	}
}
