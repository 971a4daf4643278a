package main

import (
	"fmt"
	"os"

	"mercator-hq/quotaguard/pkg/cli"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "quotaguard",
	Short: "Quotaguard - rate and quota throttle for metered remote services",
	Long: `Quotaguard keeps calls to metered remote services inside their limits.

For every configured service type it provides:
  - A fixed per-minute rate window that sleeps until the next window opens
  - Retries with a cooldown for rate-limited calls
  - A monthly transaction quota backed by durable daily usage records
  - An HTTP API for usage snapshots, history and on-demand flushes`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, ce := range cli.ConfigErrors(err) {
			fmt.Fprintf(os.Stderr, "  - %s: %s\n", ce.Field, ce.Message)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quotaguard.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
