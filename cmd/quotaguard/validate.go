package main

import (
	"fmt"
	"sort"

	"mercator-hq/quotaguard/pkg/config"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, apply defaults and QUOTAGUARD_* environment
overrides and report every validation error.

Examples:
  # Validate the default config file
  quotaguard validate

  # Validate a specific file
  quotaguard validate --config /etc/quotaguard/quotaguard.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", cfgFile)

	names := make([]string, 0, len(cfg.Services))
	for name := range cfg.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		svc := cfg.Services[name]
		remote := "no remote endpoint"
		if svc.Remote != nil {
			remote = "remote " + svc.Remote.BaseURL
		}
		fmt.Fprintf(out, "  %s: %d/min, %d/month, %d attempts, %s cooldown, %s\n",
			name, svc.PerMinute, svc.PerMonth, svc.MaxRetries, svc.Cooldown, remote)
	}

	fmt.Fprintf(out, "  storage: %s\n", describeStorage(cfg.Storage))
	schedule := cfg.Flush.Schedule
	if schedule == "" {
		schedule = "disabled"
	}
	fmt.Fprintf(out, "  flush: %s (on shutdown: %t)\n", schedule, cfg.Flush.FlushOnShutdown())
	return nil
}

func describeStorage(cfg config.StorageConfig) string {
	switch cfg.Backend {
	case "sqlite":
		return fmt.Sprintf("sqlite %s (driver %s)", cfg.SQLite.Path, cfg.SQLite.Driver)
	case "redis":
		return fmt.Sprintf("redis %s", cfg.Redis.Addr)
	case "postgres":
		return fmt.Sprintf("postgres table %s", cfg.Postgres.Table)
	default:
		return cfg.Backend
	}
}
