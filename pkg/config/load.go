package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "QUOTAGUARD_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention QUOTAGUARD_SECTION_FIELD (e.g., QUOTAGUARD_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format QUOTAGUARD_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString(EnvPrefix+"SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration(EnvPrefix+"SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration(EnvPrefix+"SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration(EnvPrefix+"SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration(EnvPrefix+"SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Service overrides apply to services already present in the file
	for name, svc := range cfg.Services {
		applyServiceEnvOverrides(name, &svc)
		cfg.Services[name] = svc
	}

	// Storage overrides
	envString(EnvPrefix+"STORAGE_BACKEND", &cfg.Storage.Backend)
	envString(EnvPrefix+"STORAGE_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString(EnvPrefix+"STORAGE_SQLITE_DRIVER", &cfg.Storage.SQLite.Driver)
	envString(EnvPrefix+"STORAGE_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	envString(EnvPrefix+"STORAGE_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	if val := os.Getenv(EnvPrefix + "STORAGE_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.Redis.DB = i
		}
	}
	envString(EnvPrefix+"STORAGE_REDIS_KEY_PREFIX", &cfg.Storage.Redis.KeyPrefix)
	envString(EnvPrefix+"STORAGE_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	envString(EnvPrefix+"STORAGE_POSTGRES_TABLE", &cfg.Storage.Postgres.Table)

	// Flush overrides
	envString(EnvPrefix+"FLUSH_SCHEDULE", &cfg.Flush.Schedule)
	if val := os.Getenv(EnvPrefix + "FLUSH_ON_SHUTDOWN"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Flush.OnShutdown = &b
		}
	}

	// Telemetry overrides
	envString(EnvPrefix+"TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString(EnvPrefix+"TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	envString(EnvPrefix+"TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool(EnvPrefix+"TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString(EnvPrefix+"TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// Watch overrides
	envBool(EnvPrefix+"WATCH_ENABLED", &cfg.Watch.Enabled)
}

// applyServiceEnvOverrides applies environment variable overrides for one service.
// Service environment variables follow the format QUOTAGUARD_SERVICES_<NAME>_<FIELD>
// where NAME is the uppercase service type with non-alphanumerics replaced by '_'.
func applyServiceEnvOverrides(name string, svc *ServiceConfig) {
	prefix := EnvPrefix + "SERVICES_" + envName(name) + "_"

	if val := os.Getenv(prefix + "PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			svc.PerMinute = i
		}
	}
	if val := os.Getenv(prefix + "PER_MONTH"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			svc.PerMonth = i
		}
	}
	envDuration(prefix+"COOLDOWN", &svc.Cooldown)
	if val := os.Getenv(prefix + "MAX_RETRIES"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			svc.MaxRetries = i
		}
	}
	if svc.Remote != nil {
		envString(prefix+"REMOTE_BASE_URL", &svc.Remote.BaseURL)
		envString(prefix+"REMOTE_API_KEY", &svc.Remote.APIKey)
	}
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
