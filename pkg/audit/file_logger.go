package audit

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/platware/orgauth/pkg/contextkeys"
)

// FileLogger appends audit events to a file as newline-delimited JSON.
type FileLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileLogger opens (or creates) an NDJSON audit log file.
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &FileLogger{file: file}, nil
}

// Log appends one event to the file.
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Status == "" {
		event.Status = EventStatusSuccess
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}

	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// LogAuthentication logs a session event
func (l *FileLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	return l.Log(ctx, &Event{
		EventType:    eventType,
		Status:       status,
		UserID:       userID,
		ResourceType: ResourceTypeSession,
		Message:      message,
	})
}

// LogAuthorization logs a permission check outcome
func (l *FileLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, organizationID *int64, status EventStatus, message string) error {
	return l.Log(ctx, &Event{
		EventType:      eventType,
		Status:         status,
		UserID:         userID,
		OrganizationID: organizationID,
		Message:        message,
	})
}

// LogDataMutation logs a data mutation event
func (l *FileLogger) LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
	return l.Log(ctx, &Event{
		EventType:    eventType,
		Status:       EventStatusSuccess,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Changes:      changes,
		Message:      message,
	})
}

// LogHTTPRequest logs an HTTP request
func (l *FileLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
	event := &Event{
		EventType:  EventTypeACPermissionCheck,
		Status:     EventStatusSuccess,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("%s %s (%s)", r.Method, r.URL.Path, duration),
	}
	if err != nil {
		event.Status = EventStatusFailure
		event.ErrorMessage = err.Error()
	}
	return l.Log(ctx, event)
}

// Close syncs and closes the file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Sync(); err != nil {
		return err
	}
	return l.file.Close()
}
