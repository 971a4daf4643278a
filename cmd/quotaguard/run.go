package main

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/quotaguard/pkg/cli"
	"mercator-hq/quotaguard/pkg/config"
	"mercator-hq/quotaguard/pkg/registry"
	"mercator-hq/quotaguard/pkg/scheduler"
	"mercator-hq/quotaguard/pkg/server"
	"mercator-hq/quotaguard/pkg/telemetry/health"
	"mercator-hq/quotaguard/pkg/telemetry/metrics"
	"mercator-hq/quotaguard/pkg/telemetry/tracing"
	"mercator-hq/quotaguard/pkg/throttle"

	"github.com/spf13/cobra"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the usage API and periodic flushing",
	Long: `Start the quotaguard service with the specified configuration.

The service seeds every configured service type from the usage store, flushes
pending usage on the configured cron schedule and serves the usage API,
health probes and Prometheus metrics. Pending usage is flushed once more on
shutdown unless flush.on_shutdown is false.

Examples:
  # Start with default config
  quotaguard run

  # Start with custom config
  quotaguard run --config /etc/quotaguard/quotaguard.yaml

  # Override listen address
  quotaguard run --listen 0.0.0.0:8090

  # Validate config without starting the service
  quotaguard run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.GetConfig()

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(logger)
	defer stop()

	logger.Info("starting quotaguard",
		"version", Version,
		"config", config.Path(),
		"services", len(cfg.Services),
		"storage_backend", cfg.Storage.Backend,
	)

	tracer, err := tracing.New(cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(cfg.Telemetry.Metrics)

	reg, err := openRegistry(ctx, cfg, throttle.Options{
		Logger:  logger,
		Metrics: collector.Throttle(),
		Tracer:  tracer.Tracer(),
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("failed to close usage store", "error", err)
		}
	}()
	defer flushOnShutdown(cfg, reg, logger)

	for _, line := range reg.Summaries() {
		logger.Info("monthly usage", "summary", line)
	}

	flusher := scheduler.New(reg, cfg.Flush.Schedule)
	if err := flusher.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer flusher.Stop()

	checker := health.New(0)
	checker.RegisterCheck("store", reg.Ping)
	checker.RegisterCheck("scheduler", func(context.Context) error {
		if err := flusher.Stats().LastErr; err != nil {
			return fmt.Errorf("last flush failed: %w", err)
		}
		return nil
	})

	if cfg.Watch.Enabled {
		if err := watchConfig(ctx, cfg, reg, logger); err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	srv := server.New(cfg.Server, server.Options{
		Usage:       reg,
		Health:      checker,
		Metrics:     collector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Tracer:      tracer.Tracer(),
		Version:     server.VersionInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
		Logger:      logger,
	})

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// watchConfig reloads the configuration file on change and applies new
// service limits to the running throttles. Settings other than service
// limits take effect on restart.
func watchConfig(ctx context.Context, cfg *config.Config, reg *registry.Registry, logger *slog.Logger) error {
	watcher, err := config.NewWatcher(config.Path(), cfg.Watch.Debounce, logger)
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Stop()
		err := watcher.Watch(ctx, func(updated *config.Config) {
			if err := reg.ApplyLimits(ctx, updated.Services); err != nil {
				logger.Error("failed to apply reloaded limits", "error", err)
				return
			}
			logger.Info("applied reloaded limits", "services", len(updated.Services))
		})
		if err != nil {
			logger.Error("config watcher stopped", "error", err)
		}
	}()
	return nil
}

// flushOnShutdown drains pending usage once more so nothing recorded since
// the last scheduled flush is lost.
func flushOnShutdown(cfg *config.Config, reg *registry.Registry, logger *slog.Logger) {
	if !cfg.Flush.FlushOnShutdown() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := reg.FlushAll(ctx); err != nil {
		logger.Error("final usage flush failed", "error", err)
		return
	}
	for _, line := range reg.Summaries() {
		logger.Info("monthly usage", "summary", line)
	}
}
