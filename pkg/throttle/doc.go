// Package throttle guards calls to a rate-limited, quota-metered remote service.
//
// # Overview
//
// A Throttle governs one service type and combines three concerns:
//
//   - Window limiting: at most PerMinute transactions per fixed 60-second
//     window. The caller that would exceed the cap sleeps until the next
//     window opens, plus a small safety margin.
//   - Retry classification: failed calls are classified as rate limited
//     (cooldown, then retry), structurally invalid (give up quietly) or
//     anything else (returned to the caller untouched).
//   - Quota tracking: transactions are counted in memory and periodically
//     flushed into a durable daily aggregate. Disabled reports when the
//     monthly quota is exhausted; it is advisory and never blocks calls.
//
// # Usage
//
//	th, err := throttle.New(ctx, throttle.Config{
//	    ServiceType: "face",
//	    PerMinute:   20,
//	    PerMonth:    30000,
//	}, store, throttle.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//
//	if th.Disabled() {
//	    return errQuotaExhausted
//	}
//
//	faces, err := throttle.Invoke(ctx, th, "detect faces", func(ctx context.Context) ([]Face, error) {
//	    return client.Detect(ctx, image)
//	})
//
//	// Periodically, e.g. from a cron job:
//	err = th.FlushUsage(ctx)
//
// # Thread Safety
//
// A Throttle is safe for concurrent use. No lock is held while a caller
// sleeps, and every sleep is cancelled by its context.
package throttle
