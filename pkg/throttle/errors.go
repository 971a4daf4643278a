package throttle

import (
	"errors"
	"fmt"
	"time"
)

// Error attaches a Kind to an error returned by a remote call.
// Integrations wrap transport errors with NewError (or RateLimited and
// StructuralInvalid) so the retry loop can classify them.
type Error struct {
	kind Kind
	err  error
}

// NewError wraps err with the given kind. It returns nil when err is nil.
func NewError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: err}
}

// RateLimited marks err as a transient capacity error.
func RateLimited(err error) error {
	return NewError(KindRateLimited, err)
}

// StructuralInvalid marks err as a request that can never succeed.
func StructuralInvalid(err error) error {
	return NewError(KindStructuralInvalid, err)
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf classifies err. Any error in the chain implementing Kind() Kind
// decides; everything else is KindOther.
func KindOf(err error) Kind {
	var classified interface{ Kind() Kind }
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return KindOther
}

// SuggestedWait returns the wait a remote service asked for, taken from any
// error in the chain implementing SuggestedWait() time.Duration. Zero means
// no hint. The cooldown is not changed by it.
func SuggestedWait(err error) time.Duration {
	var hinted interface{ SuggestedWait() time.Duration }
	if errors.As(err, &hinted) {
		return hinted.SuggestedWait()
	}
	return 0
}

// LimitError is returned when a limit is not a positive number.
type LimitError struct {
	Field string
	Value int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("invalid limit %s: must be positive, got %d", e.Field, e.Value)
}
