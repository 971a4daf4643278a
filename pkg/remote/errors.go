package remote

import (
	"fmt"
	"time"

	"mercator-hq/quotaguard/pkg/throttle"
)

// RemoteError represents a failed call with no throttle meaning.
type RemoteError struct {
	// Service is the service type the call was made for
	Service string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Code is the service-specific error code, if the response carried one
	Code string

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Code != "":
		return fmt.Sprintf("service %q error (status %d, code %s): %s", e.Service, e.StatusCode, e.Code, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("service %q error (status %d): %s", e.Service, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("service %q error: %s", e.Service, e.Message)
	}
}

// Unwrap returns the underlying error for error chain support.
func (e *RemoteError) Unwrap() error {
	return e.Cause
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
type RateLimitError struct {
	// Service is the service type that rate limited the request
	Service string

	// RetryAfter is the wait the service asked for, if it sent one
	RetryAfter time.Duration

	// Code is the service-specific error code, if any
	Code string

	// Message is the error message from the service
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("service %q rate limit exceeded (retry after %s): %s",
			e.Service, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("service %q rate limit exceeded: %s", e.Service, e.Message)
}

// Kind implements throttle classification.
func (e *RateLimitError) Kind() throttle.Kind {
	return throttle.KindRateLimited
}

// SuggestedWait reports RetryAfter to the throttle, which logs it with the
// cooldown warning.
func (e *RateLimitError) SuggestedWait() time.Duration {
	return e.RetryAfter
}

// ItemLimitError represents a request that exceeds a per-call structural
// ceiling, such as too many items in one payload. Retrying cannot help.
type ItemLimitError struct {
	// Service is the service type that rejected the request
	Service string

	// Code is the service-specific error code
	Code string

	// Message is the error message from the service
	Message string
}

// Error implements the error interface.
func (e *ItemLimitError) Error() string {
	return fmt.Sprintf("service %q rejected request (%s): %s", e.Service, e.Code, e.Message)
}

// Kind implements throttle classification.
func (e *ItemLimitError) Kind() throttle.Kind {
	return throttle.KindStructuralInvalid
}
