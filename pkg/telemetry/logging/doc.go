// Package logging configures structured logging for quotaguard.
//
// It builds a log/slog logger from the telemetry.logging section of the
// configuration and carries request-scoped fields through context.Context.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "7f9c...")
//	logging.FromContext(ctx, logger).Info("usage flushed")
//
// Components derive their own logger with a "component" attribute, for
// example slog.Default().With("component", "throttle").
package logging
