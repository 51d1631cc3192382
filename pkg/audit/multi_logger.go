package audit

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// MultiLogger fans audit events out to several loggers. Every logger sees
// every event; errors are collected rather than short-circuiting.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a fan-out logger.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log logs an audit event to all loggers
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogAuthentication logs a session event to all loggers
func (m *MultiLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.LogAuthentication(ctx, eventType, userID, status, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogAuthorization logs a permission check outcome to all loggers
func (m *MultiLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, organizationID *int64, status EventStatus, message string) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.LogAuthorization(ctx, eventType, userID, organizationID, status, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDataMutation logs a data mutation event to all loggers
func (m *MultiLogger) LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.LogDataMutation(ctx, eventType, userID, resourceType, resourceID, changes, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogHTTPRequest logs an HTTP request to all loggers
func (m *MultiLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	var errs []error
	for _, logger := range m.loggers {
		if logErr := logger.LogHTTPRequest(ctx, r, statusCode, duration, err); logErr != nil {
			errs = append(errs, logErr)
		}
	}
	return errors.Join(errs...)
}

// Close closes all loggers
func (m *MultiLogger) Close() error {
	var errs []error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
