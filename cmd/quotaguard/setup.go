package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/registry"
	"mercator-hq/quotaguard/pkg/telemetry/logging"
	"mercator-hq/quotaguard/pkg/throttle"
)

// loadConfig reads the configuration file named by --config, applying
// QUOTAGUARD_* environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg. --verbose forces debug
// level. Command logs go to stderr so command output stays parseable.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Writer:    os.Stderr,
	})
}

// openRegistry opens the configured usage store and builds one throttle per
// configured service type, seeded from the store.
func openRegistry(ctx context.Context, cfg *config.Config, opts throttle.Options) (*registry.Registry, error) {
	store, err := registry.OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}

	reg, err := registry.New(ctx, cfg.Services, store, opts)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create throttles: %w", err)
	}
	return reg, nil
}
