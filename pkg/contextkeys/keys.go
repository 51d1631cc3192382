// Package contextkeys centralizes the context keys shared across packages.
// Defining them in one place keeps key usage discoverable and prevents
// collisions between packages that annotate the same request context.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains the request ID string.
	// Set by: httputil.RequestIDMiddleware
	// Used by: audit loggers, structured request logging
	RequestIDKey Key = "request_id"

	// RequestStartTimeKey contains the request start timestamp.
	// Set by: httputil.RequestIDMiddleware
	// Used by: audit HTTP logging for duration calculation
	// Type: time.Time
	RequestStartTimeKey Key = "request_start_time"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context, or "" when unset
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestStartTime adds a request start time to the context
func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}
