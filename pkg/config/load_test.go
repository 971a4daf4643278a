package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalConfig = `
services:
  face:
    per_minute: 20
    per_month: 30000
storage:
  backend: memory
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quotaguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9000"
  read_timeout: "20s"

services:
  face:
    per_minute: 20
    per_month: 30000
    cooldown: "45s"
  ocr:
    per_minute: 5
    per_month: 1000
    max_retries: 5
    remote:
      base_url: "https://ocr.example.com/v1"
      api_key: "secret"
      rate_limit_codes: ["Throttled"]
      structural_codes: ["TooManyPages"]

storage:
  backend: "sqlite"
  sqlite:
    path: "./usage.db"
    driver: "sqlite3"

flush:
  schedule: "@every 1m"
  on_shutdown: false

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9000", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("expected read timeout 20s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("expected default write timeout, got %v", cfg.Server.WriteTimeout)
	}

	face := cfg.Services["face"]
	if face.PerMinute != 20 || face.PerMonth != 30000 {
		t.Errorf("expected face limits 20/30000, got %d/%d", face.PerMinute, face.PerMonth)
	}
	if face.Cooldown != 45*time.Second {
		t.Errorf("expected face cooldown 45s, got %v", face.Cooldown)
	}
	if face.Margin != 5*time.Second {
		t.Errorf("expected default margin 5s, got %v", face.Margin)
	}

	ocr := cfg.Services["ocr"]
	if ocr.MaxRetries != 5 {
		t.Errorf("expected ocr max retries 5, got %d", ocr.MaxRetries)
	}
	if ocr.Remote == nil {
		t.Fatal("expected ocr remote block")
	}
	if ocr.Remote.APIKeyHeader != DefaultRemoteAPIKeyHeader {
		t.Errorf("expected default api key header, got %q", ocr.Remote.APIKeyHeader)
	}
	if len(ocr.Remote.StructuralCodes) != 1 || ocr.Remote.StructuralCodes[0] != "TooManyPages" {
		t.Errorf("expected structural codes [TooManyPages], got %v", ocr.Remote.StructuralCodes)
	}

	if cfg.Storage.SQLite.Driver != "sqlite3" {
		t.Errorf("expected sqlite3 driver, got %q", cfg.Storage.SQLite.Driver)
	}
	if cfg.Flush.FlushOnShutdown() {
		t.Error("expected flush on shutdown to be disabled")
	}
	if !cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics enabled by default")
	}
	if cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("expected text logging, got %q", cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read configuration file") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "services: [unclosed")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse configuration file") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
services:
  face:
    per_minute: 0
    per_month: 100
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "services.face.per_minute" {
		t.Errorf("expected a single services.face.per_minute error, got %v", verr.Errors)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
services:
  face-match:
    per_minute: 20
    per_month: 30000
storage:
  backend: memory
`)

	t.Setenv("QUOTAGUARD_SERVER_LISTEN_ADDRESS", "127.0.0.1:9999")
	t.Setenv("QUOTAGUARD_SERVICES_FACE_MATCH_PER_MINUTE", "7")
	t.Setenv("QUOTAGUARD_SERVICES_FACE_MATCH_PER_MONTH", "500")
	t.Setenv("QUOTAGUARD_SERVICES_FACE_MATCH_COOLDOWN", "1m")
	t.Setenv("QUOTAGUARD_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("QUOTAGUARD_TELEMETRY_METRICS_ENABLED", "false")
	t.Setenv("QUOTAGUARD_FLUSH_SCHEDULE", "@hourly")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("expected overridden listen address, got %q", cfg.Server.ListenAddress)
	}
	svc := cfg.Services["face-match"]
	if svc.PerMinute != 7 || svc.PerMonth != 500 {
		t.Errorf("expected overridden limits 7/500, got %d/%d", svc.PerMinute, svc.PerMonth)
	}
	if svc.Cooldown != time.Minute {
		t.Errorf("expected overridden cooldown 1m, got %v", svc.Cooldown)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.IsEnabled() {
		t.Error("expected metrics disabled by override")
	}
	if cfg.Flush.Schedule != "@hourly" {
		t.Errorf("expected schedule @hourly, got %q", cfg.Flush.Schedule)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QUOTAGUARD_STORAGE_BACKEND", "cassandra")

	if _, err := LoadConfigWithEnvOverrides(path); err == nil {
		t.Fatal("expected validation error after override")
	}
}

func TestLoadConfigWithEnvOverrides_IgnoresMalformedValues(t *testing.T) {
	path := writeConfig(t, minimalConfig)
	t.Setenv("QUOTAGUARD_SERVER_READ_TIMEOUT", "soon")
	t.Setenv("QUOTAGUARD_SERVICES_FACE_PER_MINUTE", "many")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Services["face"].PerMinute != 20 {
		t.Errorf("expected per_minute 20, got %d", cfg.Services["face"].PerMinute)
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"face":       "FACE",
		"face-match": "FACE_MATCH",
		"ocr.v2":     "OCR_V2",
		"Doc2":       "DOC2",
	}
	for in, want := range tests {
		if got := envName(in); got != want {
			t.Errorf("envName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestLoadConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "examples", "quotaguard.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	face, ok := cfg.Services["face"]
	if !ok {
		t.Fatal("example config has no face service")
	}
	if face.PerMinute != 20 || face.PerMonth != 30000 {
		t.Errorf("face limits = %d/%d, want 20/30000", face.PerMinute, face.PerMonth)
	}
	if face.Remote == nil || face.Remote.BaseURL != "https://face.example.com/v1" {
		t.Errorf("face remote = %+v", face.Remote)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if !cfg.Flush.FlushOnShutdown() {
		t.Error("example config should flush on shutdown")
	}
}
