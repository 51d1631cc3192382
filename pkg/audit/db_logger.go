package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/platware/orgauth/pkg/contextkeys"
)

// DBLogger writes audit events to a database table. Events are buffered on
// a channel and flushed in batches by a background worker, so request paths
// never block on the audit write.
type DBLogger struct {
	db *sql.DB

	events    chan *Event
	flushSize int
	interval  time.Duration

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

const (
	defaultBufferSize = 1024
	defaultFlushSize  = 64
	defaultInterval   = 2 * time.Second
)

// NewDBLogger creates a database audit logger and ensures its table exists.
func NewDBLogger(ctx context.Context, db *sql.DB) (*DBLogger, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			event_type VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL,
			user_id BIGINT,
			organization_id BIGINT,
			resource_type VARCHAR(50),
			resource_id VARCHAR(255),
			ip_address VARCHAR(64),
			user_agent TEXT,
			request_id VARCHAR(64),
			method VARCHAR(10),
			path TEXT,
			status_code INT,
			message TEXT,
			error_message TEXT
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit_events table: %w", err)
	}

	l := &DBLogger{
		db:        db,
		events:    make(chan *Event, defaultBufferSize),
		flushSize: defaultFlushSize,
		interval:  defaultInterval,
		closed:    make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *DBLogger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	batch := make([]*Event, 0, l.flushSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.writeBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case event := <-l.events:
			batch = append(batch, event)
			if len(batch) >= l.flushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.closed:
			// Drain whatever is still buffered.
			for {
				select {
				case event := <-l.events:
					batch = append(batch, event)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *DBLogger) writeBatch(batch []*Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer tx.Rollback()

	query := `
		INSERT INTO audit_events (timestamp, event_type, status, user_id, organization_id, resource_type, resource_id, ip_address, user_agent, request_id, method, path, status_code, message, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for _, event := range batch {
		if _, err := tx.ExecContext(ctx, query,
			event.Timestamp,
			event.EventType,
			event.Status,
			event.UserID,
			event.OrganizationID,
			event.ResourceType,
			event.ResourceID,
			event.IPAddress,
			event.UserAgent,
			event.RequestID,
			event.Method,
			event.Path,
			event.StatusCode,
			event.Message,
			event.ErrorMessage,
		); err != nil {
			return
		}
	}
	tx.Commit()
}

// Log queues an audit event. Events are dropped when the buffer is full
// rather than blocking the caller.
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Status == "" {
		event.Status = EventStatusSuccess
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
	select {
	case l.events <- event:
		return nil
	default:
		return fmt.Errorf("audit buffer full, event dropped: %s", event.EventType)
	}
}

// LogAuthentication logs a session event
func (l *DBLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	return l.Log(ctx, &Event{
		EventType:    eventType,
		Status:       status,
		UserID:       userID,
		ResourceType: ResourceTypeSession,
		Message:      message,
	})
}

// LogAuthorization logs a permission check outcome
func (l *DBLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, organizationID *int64, status EventStatus, message string) error {
	return l.Log(ctx, &Event{
		EventType:      eventType,
		Status:         status,
		UserID:         userID,
		OrganizationID: organizationID,
		Message:        message,
	})
}

// LogDataMutation logs a data mutation event
func (l *DBLogger) LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
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
func (l *DBLogger) LogHTTPRequest(ctx context.Context, r *http.Request, statusCode int, duration time.Duration, err error) error {
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
	if statusCode == http.StatusForbidden {
		event.EventType = EventTypeACAccessDenied
		event.Status = EventStatusDenied
	}
	return l.Log(ctx, event)
}

// Close stops the background worker after flushing buffered events.
func (l *DBLogger) Close() error {
	l.once.Do(func() {
		close(l.closed)
	})
	l.wg.Wait()
	return nil
}
