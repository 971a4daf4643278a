package config

import "time"

// Config is the root configuration structure for quotaguard.
// It contains all configuration sections for the service.
type Config struct {
	// Server contains HTTP server configuration for the usage API.
	Server ServerConfig `yaml:"server"`

	// Services maps a service type to its throttle configuration.
	// Each entry becomes one throttle with its own window and quota.
	Services map[string]ServiceConfig `yaml:"services"`

	// Storage configures where daily usage records are persisted.
	Storage StorageConfig `yaml:"storage"`

	// Flush configures periodic flushing of pending usage.
	Flush FlushConfig `yaml:"flush"`

	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch configures hot reloading of the configuration file.
	Watch WatchConfig `yaml:"watch"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown, including the final flush.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ServiceConfig configures the throttle of one service type.
type ServiceConfig struct {
	// PerMinute is the maximum number of transactions per window.
	// Required.
	PerMinute int `yaml:"per_minute"`

	// PerMonth is the monthly transaction quota.
	// Required.
	PerMonth int64 `yaml:"per_month"`

	// Window is the fixed window length.
	// Default: 60s
	Window time.Duration `yaml:"window"`

	// Margin is added to every window-cap sleep.
	// Default: 5s
	Margin time.Duration `yaml:"margin"`

	// LongDelay is the sleep above which a warning is logged.
	// Default: 10s
	LongDelay time.Duration `yaml:"long_delay"`

	// Cooldown is the pause after a rate-limited attempt.
	// Default: 30s
	Cooldown time.Duration `yaml:"cooldown"`

	// MaxRetries is the number of attempts per call.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// Remote optionally describes the HTTP endpoint behind this service type.
	// Only used by the "call" command.
	Remote *RemoteConfig `yaml:"remote"`
}

// RemoteConfig describes a remote HTTP service guarded by a throttle.
type RemoteConfig struct {
	// BaseURL is the base URL of the service.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent in the header named by APIKeyHeader.
	APIKey string `yaml:"api_key"`

	// APIKeyHeader names the header carrying APIKey.
	// Default: "Authorization"
	APIKeyHeader string `yaml:"api_key_header"`

	// Headers are extra headers sent with every request.
	Headers map[string]string `yaml:"headers"`

	// Timeout bounds a single request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// RateLimitCodes are error codes treated as rate limiting.
	// Default: TooManyRequests, RateLimitExceeded, Throttled
	RateLimitCodes []string `yaml:"rate_limit_codes"`

	// StructuralCodes are error codes treated as structurally invalid calls.
	StructuralCodes []string `yaml:"structural_codes"`
}

// StorageConfig selects and configures the usage store.
type StorageConfig struct {
	// Backend is the storage backend type.
	// Valid values: "memory", "sqlite", "redis", "postgres"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis contains Redis backend configuration.
	Redis RedisConfig `yaml:"redis"`

	// Postgres contains PostgreSQL backend configuration.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite backend configuration.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver: "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// SnapshotInterval is how often the WAL is checkpointed.
	// Default: 5m
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// RedisConfig contains Redis backend configuration.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password authenticates with the server.
	Password string `yaml:"password"`

	// DB selects the logical database.
	// Default: 0
	DB int `yaml:"db"`

	// KeyPrefix namespaces every key written by the store.
	// Default: "quotaguard:usage"
	KeyPrefix string `yaml:"key_prefix"`
}

// PostgresConfig contains PostgreSQL backend configuration.
type PostgresConfig struct {
	// DSN is the connection string.
	// Required when backend is "postgres".
	DSN string `yaml:"dsn"`

	// Table is the daily usage table.
	// Default: "daily_usage"
	Table string `yaml:"table"`

	// MaxConns caps the connection pool.
	// Default: 4
	MaxConns int32 `yaml:"max_conns"`
}

// FlushConfig configures how pending usage reaches the store.
type FlushConfig struct {
	// Schedule is a cron expression for periodic flushes.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// OnShutdown flushes every throttle during graceful shutdown.
	// Default: true
	OnShutdown *bool `yaml:"on_shutdown"`
}

// FlushOnShutdown reports whether a final flush runs at shutdown.
func (f FlushConfig) FlushOnShutdown() bool {
	return f.OnShutdown == nil || *f.OnShutdown
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format.
	// Valid values: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// IsEnabled reports whether metrics are enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is enabled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Required when tracing is enabled.
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "quotaguard"
	ServiceName string `yaml:"service_name"`

	// Sampler selects the sampling strategy.
	// Valid values: "always", "never", "ratio", "parent_based"
	// Default: "parent_based"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the sampling ratio for "ratio" and "parent_based".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`
}

// WatchConfig configures hot reloading of the configuration file.
type WatchConfig struct {
	// Enabled turns on the file watcher.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce is the quiet period before a reload is triggered.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}
