package audit

import (
	"context"
	"net/http"
	"time"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogAuthentication logs a session event
	LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error

	// LogAuthorization logs a permission check outcome
	LogAuthorization(ctx context.Context, eventType EventType, userID *int64, organizationID *int64, status EventStatus, message string) error

	// LogDataMutation logs a data mutation event
	LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error

	// LogHTTPRequest logs an HTTP request (for middleware)
	LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// contextKey is the type for context keys
type contextKey string

const (
	// AuditLoggerKey is the context key for the audit logger
	AuditLoggerKey contextKey = "audit_logger"
)

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(AuditLoggerKey).(Logger); ok {
		return logger
	}
	// Return a no-op logger if none is set
	return &noOpLogger{}
}

// noOpLogger is a logger that does nothing (used when no logger is configured)
type noOpLogger struct{}

func (n *noOpLogger) Log(context.Context, *Event) error { return nil }
func (n *noOpLogger) LogAuthentication(context.Context, EventType, *int64, EventStatus, string) error {
	return nil
}
func (n *noOpLogger) LogAuthorization(context.Context, EventType, *int64, *int64, EventStatus, string) error {
	return nil
}
func (n *noOpLogger) LogDataMutation(context.Context, EventType, *int64, ResourceType, string, *ChangeDetails, string) error {
	return nil
}
func (n *noOpLogger) LogHTTPRequest(context.Context, *http.Request, int, time.Duration, error) error {
	return nil
}
func (n *noOpLogger) Close() error { return nil }

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return &noOpLogger{} }
