/*
Package cli provides command-line helpers for the quotaguard command.

Output Formatting:

Usage snapshots and daily history can be printed as aligned text, JSON or
CSV:

	formatter, err := cli.NewFormatter(cli.FormatText)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, cli.SnapshotTable(reg.Snapshots()))

Progress Reporting:

The call command reports progress while a batch of throttled calls runs:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(count))
	for i := 0; i < count; i++ {
		// invoke
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(logger)
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes: 2 for configuration
errors, 130 for interrupted commands and 1 otherwise.
*/
package cli
