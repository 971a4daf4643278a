package throttle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Invoke runs op under t's retry policy and records a transaction on
// success. op is called afresh on every attempt.
//
// Rate-limited failures are retried after a cooldown until the attempt
// budget runs out, at which point the last error is returned. A structurally
// invalid failure ends the call with the zero value and a nil error. Any
// other failure is returned immediately.
//
// If ctx is cancelled while waiting for the rate window after a successful
// attempt, the result is returned together with the cancellation error.
func Invoke[T any](ctx context.Context, t *Throttle, description string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := t.tracer.Start(ctx, "throttle.invoke",
		trace.WithAttributes(
			attribute.String("quotaguard.service_type", t.serviceType),
			attribute.String("quotaguard.description", description),
		),
	)
	defer span.End()

	var lastErr error
	for retries := t.maxRetries; retries > 0; {
		retries--
		attempt := t.maxRetries - retries

		result, err := op(ctx)
		if err == nil {
			t.metrics.recordAttempt(t.serviceType, KindOther, true)
			span.SetAttributes(attribute.Int("quotaguard.attempts", attempt))
			if err := t.recordTransaction(ctx, description); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}

		kind := KindOf(err)
		t.metrics.recordAttempt(t.serviceType, kind, false)
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("quotaguard.attempt", attempt),
			attribute.String("quotaguard.kind", kind.String()),
		))

		switch kind {
		case KindRateLimited:
			lastErr = err
			if retries == 0 {
				continue
			}
			attrs := []any{
				"description", description,
				"retries_remaining", retries,
				"window_count", t.window.current(),
				"cooldown", t.cooldown,
				"error", err,
			}
			if wait := SuggestedWait(err); wait > 0 {
				attrs = append(attrs, "retry_after", wait)
			}
			t.logger.Warn("remote service rate limited, cooling down", attrs...)
			t.metrics.recordCooldown(t.serviceType)
			if err := t.clock.Sleep(ctx, t.cooldown); err != nil {
				err = fmt.Errorf("%s: cooldown aborted: %w", description, err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return zero, err
			}

		case KindStructuralInvalid:
			t.logger.Warn("remote service rejected request as structurally invalid",
				"description", description,
				"error", err,
			)
			span.SetStatus(codes.Ok, "structurally invalid request skipped")
			return zero, nil

		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
	}

	t.logger.Error("retry budget exhausted",
		"description", description,
		"attempts", t.maxRetries,
		"error", lastErr,
	)
	err := fmt.Errorf("%s: retry budget of %d attempts exhausted: %w", description, t.maxRetries, lastErr)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return zero, err
}

// InvokeVoid is Invoke for operations without a result.
func (t *Throttle) InvokeVoid(ctx context.Context, description string, op func(ctx context.Context) error) error {
	_, err := Invoke(ctx, t, description, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
