package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// ServiceTypeKey is the context key for the service type being throttled.
	ServiceTypeKey contextKey = "service_type"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithServiceType adds a service type to the context.
func WithServiceType(ctx context.Context, serviceType string) context.Context {
	return context.WithValue(ctx, ServiceTypeKey, serviceType)
}

// GetServiceType retrieves the service type from the context.
func GetServiceType(ctx context.Context) string {
	if st, ok := ctx.Value(ServiceTypeKey).(string); ok {
		return st
	}
	return ""
}

// FromContext returns logger annotated with the fields carried by ctx.
// A nil logger means slog.Default.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if args := contextFields(ctx); len(args) > 0 {
		return logger.With(args...)
	}
	return logger
}

func contextFields(ctx context.Context) []any {
	var args []any
	if id := GetRequestID(ctx); id != "" {
		args = append(args, string(RequestIDKey), id)
	}
	if st := GetServiceType(ctx); st != "" {
		args = append(args, string(ServiceTypeKey), st)
	}
	return args
}
