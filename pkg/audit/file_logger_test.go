package audit

import (
	"bufio"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platware/orgauth/pkg/contextkeys"
)

func setupFileLogger(t *testing.T) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.ndjson")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	return logger, path
}

func readEvents(t *testing.T, path string) []*Event {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		event, err := FromJSON(scanner.Bytes())
		if err != nil {
			t.Fatalf("bad NDJSON line %q: %v", scanner.Text(), err)
		}
		events = append(events, event)
	}
	return events
}

func TestFileLoggerWritesNDJSON(t *testing.T) {
	logger, path := setupFileLogger(t)
	ctx := context.Background()
	userID := int64(42)

	if err := logger.LogDataMutation(ctx, EventTypeOrgCreate, &userID,
		ResourceTypeOrganization, "acme", nil, "organization created"); err != nil {
		t.Fatal(err)
	}
	orgID := int64(7)
	if err := logger.LogAuthorization(ctx, EventTypeACAccessDenied, &userID, &orgID,
		EventStatusDenied, "denied"); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].EventType != EventTypeOrgCreate || *events[0].UserID != 42 {
		t.Errorf("first = %+v", events[0])
	}
	if events[0].Status != EventStatusSuccess {
		t.Errorf("Status = %s, defaults to success", events[0].Status)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("Timestamp not defaulted")
	}
	if events[1].Status != EventStatusDenied || *events[1].OrganizationID != 7 {
		t.Errorf("second = %+v", events[1])
	}
}

func TestFileLoggerRequestIDFromContext(t *testing.T) {
	logger, path := setupFileLogger(t)
	ctx := contextkeys.WithRequestID(context.Background(), "req-123")

	if err := logger.Log(ctx, &Event{EventType: EventTypeOrgUpdate}); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	if len(events) != 1 || events[0].RequestID != "req-123" {
		t.Errorf("events = %+v", events)
	}
}

func TestFileLoggerHTTPRequest(t *testing.T) {
	logger, path := setupFileLogger(t)

	req := httptest.NewRequest("GET", "/api/v1/orgs", nil)
	req.Header.Set("User-Agent", "test-agent")
	if err := logger.LogHTTPRequest(context.Background(), req, 500,
		50*time.Millisecond, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("len = %d", len(events))
	}
	event := events[0]
	if event.Status != EventStatusFailure || event.ErrorMessage != "boom" {
		t.Errorf("event = %+v", event)
	}
	if event.Method != "GET" || event.Path != "/api/v1/orgs" || event.StatusCode != 500 {
		t.Errorf("request fields = %+v", event)
	}
	if event.UserAgent != "test-agent" {
		t.Errorf("UserAgent = %s", event.UserAgent)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.ndjson")

	for i := 0; i < 2; i++ {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := logger.Log(context.Background(), &Event{EventType: EventTypeOrgCreate}); err != nil {
			t.Fatal(err)
		}
		if err := logger.Close(); err != nil {
			t.Fatal(err)
		}
	}

	if events := readEvents(t, path); len(events) != 2 {
		t.Errorf("len = %d, reopening must append", len(events))
	}
}
