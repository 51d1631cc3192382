package audit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

type recordingLogger struct {
	events []*Event
	closed bool
	err    error
}

func (r *recordingLogger) Log(ctx context.Context, event *Event) error {
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, status EventStatus, message string) error {
	return r.Log(ctx, &Event{EventType: eventType, UserID: userID, Status: status, Message: message})
}

func (r *recordingLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, organizationID *int64, status EventStatus, message string) error {
	return r.Log(ctx, &Event{EventType: eventType, UserID: userID, OrganizationID: organizationID, Status: status})
}

func (r *recordingLogger) LogDataMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, changes *ChangeDetails, message string) error {
	return r.Log(ctx, &Event{EventType: eventType, UserID: userID, ResourceType: resourceType, ResourceID: resourceID})
}

func (r *recordingLogger) LogHTTPRequest(ctx context.Context, req *http.Request, statusCode int, duration time.Duration, err error) error {
	return r.Log(ctx, &Event{Method: req.Method, Path: req.URL.Path, StatusCode: statusCode})
}

func (r *recordingLogger) Close() error {
	r.closed = true
	return r.err
}

func TestMultiLoggerFansOut(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	multi := NewMultiLogger(first, second)
	ctx := context.Background()
	userID := int64(42)

	if err := multi.LogDataMutation(ctx, EventTypeOrgCreate, &userID,
		ResourceTypeOrganization, "acme", nil, "created"); err != nil {
		t.Fatal(err)
	}

	if len(first.events) != 1 || len(second.events) != 1 {
		t.Errorf("events: first = %d, second = %d", len(first.events), len(second.events))
	}
}

func TestMultiLoggerCollectsErrors(t *testing.T) {
	failing := &recordingLogger{err: errors.New("disk full")}
	healthy := &recordingLogger{}
	multi := NewMultiLogger(failing, healthy)

	err := multi.Log(context.Background(), &Event{EventType: EventTypeOrgCreate})
	if err == nil {
		t.Fatal("expected error from failing logger")
	}
	// The healthy logger still received the event.
	if len(healthy.events) != 1 {
		t.Errorf("healthy events = %d", len(healthy.events))
	}
}

func TestMultiLoggerClose(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	multi := NewMultiLogger(first, second)

	if err := multi.Close(); err != nil {
		t.Fatal(err)
	}
	if !first.closed || !second.closed {
		t.Error("not all loggers closed")
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	if err := logger.Log(context.Background(), &Event{EventType: EventTypeOrgCreate}); err != nil {
		t.Errorf("nop Log returned %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("nop Close returned %v", err)
	}
}

func TestLoggerContext(t *testing.T) {
	ctx := context.Background()
	if got := FromContext(ctx); got == nil {
		t.Fatal("FromContext must fall back to a no-op logger")
	}

	recorder := &recordingLogger{}
	ctx = WithLogger(ctx, recorder)
	if err := FromContext(ctx).Log(ctx, &Event{EventType: EventTypeOrgCreate}); err != nil {
		t.Fatal(err)
	}
	if len(recorder.events) != 1 {
		t.Errorf("events = %d", len(recorder.events))
	}
}
