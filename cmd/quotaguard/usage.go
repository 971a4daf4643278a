package main

import (
	"fmt"
	"time"

	"mercator-hq/quotaguard/pkg/cli"
	"mercator-hq/quotaguard/pkg/throttle"
	"mercator-hq/quotaguard/pkg/throttle/storage"

	"github.com/spf13/cobra"
)

var usageFlags struct {
	service string
	history bool
	summary bool
	from    string
	to      string
	format  string
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show month-to-date usage from the usage store",
	Long: `Show month-to-date usage of every configured service type, read from the
configured usage store.

Examples:
  # Snapshot table of every service type
  quotaguard usage

  # One line per service type
  quotaguard usage --summary

  # Daily history of one service type for the current month
  quotaguard usage --service face --history

  # Daily history for an explicit range as CSV
  quotaguard usage --service face --history --from 2026-09-01 --to 2026-09-30 --format csv`,
	RunE: showUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.Flags().StringVarP(&usageFlags.service, "service", "s", "", "limit output to one service type")
	usageCmd.Flags().BoolVar(&usageFlags.history, "history", false, "show daily records instead of snapshots (requires --service)")
	usageCmd.Flags().BoolVar(&usageFlags.summary, "summary", false, "print one summary line per service type")
	usageCmd.Flags().StringVar(&usageFlags.from, "from", "", "first history day, YYYY-MM-DD (default: first day of this month)")
	usageCmd.Flags().StringVar(&usageFlags.to, "to", "", "last history day, YYYY-MM-DD (default: today)")
	usageCmd.Flags().StringVarP(&usageFlags.format, "format", "o", "text", "output format: text, json, csv")
}

func showUsage(cmd *cobra.Command, args []string) error {
	if usageFlags.history && usageFlags.service == "" {
		return fmt.Errorf("--history requires --service")
	}

	formatter, err := cli.NewFormatter(cli.OutputFormat(usageFlags.format))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	ctx := cmd.Context()
	reg, err := openRegistry(ctx, cfg, throttle.Options{Logger: logger})
	if err != nil {
		return cli.NewCommandError("usage", err)
	}
	defer reg.Close()

	out := cmd.OutOrStdout()

	if usageFlags.history {
		from, to, err := historyRange(time.Now(), usageFlags.from, usageFlags.to)
		if err != nil {
			return err
		}
		records, err := reg.History(ctx, usageFlags.service, from, to)
		if err != nil {
			return cli.NewCommandError("usage", err)
		}
		return formatter.FormatTo(out, cli.HistoryTable(records))
	}

	snapshots := reg.Snapshots()
	if usageFlags.service != "" {
		th, err := reg.Get(usageFlags.service)
		if err != nil {
			return cli.NewCommandError("usage", err)
		}
		snapshots = []throttle.Snapshot{th.Usage()}
	}

	if usageFlags.summary {
		lines := make([]string, 0, len(snapshots))
		for _, snap := range snapshots {
			th, _ := reg.Get(snap.ServiceType)
			lines = append(lines, th.MonthlySummary())
		}
		return formatter.FormatTo(out, lines)
	}
	return formatter.FormatTo(out, cli.SnapshotTable(snapshots))
}

// historyRange resolves the --from and --to flags. Both default to the
// current month up to today, in the calendar of now.
func historyRange(now time.Time, fromFlag, toFlag string) (time.Time, time.Time, error) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := now

	if fromFlag != "" {
		parsed, err := storage.ParseDateKey(fromFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--from: %w", err)
		}
		from = parsed
	}
	if toFlag != "" {
		parsed, err := storage.ParseDateKey(toFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("--to: %w", err)
		}
		to = parsed
	}
	if storage.DateKey(to) < storage.DateKey(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--from %s is after --to %s", storage.DateKey(from), storage.DateKey(to))
	}
	return from, to, nil
}
