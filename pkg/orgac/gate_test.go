package orgac

import (
	"context"
	"reflect"
	"testing"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/audit"
)

func TestSplitRoles(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "owner", []string{"owner"}},
		{"multiple", "owner,editor", []string{"owner", "editor"}},
		{"whitespace and case", " Owner , EDITOR ", []string{"owner", "editor"}},
		{"empty parts dropped", "owner,,editor,", []string{"owner", "editor"}},
		{"empty string", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitRoles(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitRoles(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGate_PredefinedRoles(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		name      string
		role      string
		requested accesscontrol.Statements
		want      bool
	}{
		{"owner can delete org", "owner", accesscontrol.Statements{"organization": {"delete"}}, true},
		{"admin cannot delete org", "admin", accesscontrol.Statements{"organization": {"delete"}}, false},
		{"admin can update org", "admin", accesscontrol.Statements{"organization": {"update"}}, true},
		{"member has nothing", "member", accesscontrol.Statements{"member": {"create"}}, false},
		{"unknown role denied", "ghost", accesscontrol.Statements{"member": {"create"}}, false},
		{"conjunctive within request", "admin", accesscontrol.Statements{
			"organization": {"update"},
			"member":       {"create", "delete"},
		}, true},
		{"one missing action fails all", "admin", accesscontrol.Statements{
			"organization": {"update", "delete"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.gate.HasPermission(ctx, 1, tt.role, tt.requested)
			if err != nil {
				t.Fatalf("HasPermission failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasPermission = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_MultiRoleDisjunction(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	// member grants nothing, owner grants everything; together the check
	// passes because any one role sufficing is enough.
	allowed, err := env.gate.HasPermission(ctx, 1, "member,owner",
		accesscontrol.Statements{"organization": {"delete"}})
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("owner within a multi-role string must grant the permission")
	}
}

func TestGate_CustomRoleFromStore(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	role := &Role{
		OrganizationID: 1,
		Role:           "auditor",
		Permission:     accesscontrol.Statements{"member": {"create"}},
	}
	if err := env.store.CreateRole(ctx, role); err != nil {
		t.Fatal(err)
	}

	allowed, err := env.gate.HasPermission(ctx, 1, "auditor",
		accesscontrol.Statements{"member": {"create"}})
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("custom role must grant its permission")
	}

	// Another organization's check must not see org 1's custom role.
	allowed, err = env.gate.HasPermission(ctx, 2, "auditor",
		accesscontrol.Statements{"member": {"create"}})
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("custom roles are organization-scoped")
	}
}

func TestGate_PredefinedShadowsCustom(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	// A stray row sharing a pre-defined name must not widen the role.
	role := &Role{
		OrganizationID: 1,
		Role:           "member",
		Permission:     accesscontrol.Statements{"organization": {"delete"}},
	}
	if err := env.store.CreateRole(ctx, role); err != nil {
		t.Fatal(err)
	}

	allowed, err := env.gate.HasPermission(ctx, 1, "member",
		accesscontrol.Statements{"organization": {"delete"}})
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("pre-defined role must win over a same-named custom role")
	}
}

func TestGate_InvalidateRole(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	role := &Role{
		OrganizationID: 1,
		Role:           "auditor",
		Permission:     accesscontrol.Statements{"member": {"create"}},
	}
	if err := env.store.CreateRole(ctx, role); err != nil {
		t.Fatal(err)
	}

	// Warm the compiled-role cache.
	if allowed, _ := env.gate.HasPermission(ctx, 1, "auditor",
		accesscontrol.Statements{"member": {"create"}}); !allowed {
		t.Fatal("expected initial grant")
	}

	role.Permission = accesscontrol.Statements{}
	if err := env.store.UpdateRole(ctx, role); err != nil {
		t.Fatal(err)
	}

	// Stale until invalidated.
	if allowed, _ := env.gate.HasPermission(ctx, 1, "auditor",
		accesscontrol.Statements{"member": {"create"}}); !allowed {
		t.Fatal("cached role should still answer before invalidation")
	}

	env.gate.InvalidateRole(1, "auditor")
	allowed, err := env.gate.HasPermission(ctx, 1, "auditor",
		accesscontrol.Statements{"member": {"create"}})
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("invalidation must evict the stale compiled role")
	}
}

func TestGate_RequireEachPermission(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	// admin holds member:create but not organization:delete.
	err := env.gate.RequireEachPermission(ctx, 1, "admin", accesscontrol.Statements{
		"member": {"create"},
	})
	if err != nil {
		t.Errorf("held permission should pass: %v", err)
	}

	err = env.gate.RequireEachPermission(ctx, 1, "admin", accesscontrol.Statements{
		"member":       {"create"},
		"organization": {"delete"},
	})
	if !IsCode(err, CodeInvalidPermission) {
		t.Errorf("err = %v, want INVALID_PERMISSION", err)
	}
}

func TestGate_StatementsMergesCustomResources(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	resource := &Resource{OrganizationID: 1, Resource: "project", Permissions: []string{"create"}}
	if err := env.store.CreateResource(ctx, resource); err != nil {
		t.Fatal(err)
	}

	ac, err := env.gate.Statements(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	statements := ac.Statements()
	if !statements.Grants("project", "create") {
		t.Error("custom resource missing from effective statements")
	}
	if !statements.Grants("organization", "update") {
		t.Error("default statements missing from effective statements")
	}
}

func TestGate_StatementsWithoutACInstance(t *testing.T) {
	env := setupTestEnv(t, Config{})
	_, err := env.gate.Statements(context.Background(), 1)
	if !IsCode(err, CodeMissingACInstance) {
		t.Errorf("err = %v, want MISSING_AC_INSTANCE", err)
	}
}

func TestGate_Member(t *testing.T) {
	env := setupTestEnv(t, DefaultConfig())
	ctx := context.Background()

	addTestMember(t, env.db, 1, 10, "owner")

	member, err := env.gate.Member(ctx, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if member.Role != "owner" {
		t.Errorf("Role = %s", member.Role)
	}

	_, err = env.gate.Member(ctx, 1, 99)
	if !IsCode(err, CodeNotAMemberOfOrganization) {
		t.Errorf("err = %v, want YOU_ARE_NOT_A_MEMBER_OF_THIS_ORGANIZATION", err)
	}
}

// capturingAuditLogger records authorization events for inspection.
type capturingAuditLogger struct {
	audit.Logger
	events []*audit.Event
}

func newCapturingAuditLogger() *capturingAuditLogger {
	return &capturingAuditLogger{Logger: audit.NopLogger()}
}

func (c *capturingAuditLogger) LogAuthorization(_ context.Context, eventType audit.EventType, userID *int64, organizationID *int64, status audit.EventStatus, message string) error {
	c.events = append(c.events, &audit.Event{
		EventType:      eventType,
		UserID:         userID,
		OrganizationID: organizationID,
		Status:         status,
		Message:        message,
	})
	return nil
}

func TestGate_DeniedCheckEmitsAuditEvent(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	loader := NewStatementLoader(store, NewMemoryStatementCache())
	recorder := newCapturingAuditLogger()
	gate, err := NewGate(DefaultConfig(), store, loader, testObsLogger(), nil, recorder)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	ctx := context.Background()

	allowed, err := gate.HasPermission(ctx, 1, "member", accesscontrol.Statements{
		"organization": {"delete"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Fatal("allowed = true, want denied")
	}
	if len(recorder.events) != 1 {
		t.Fatalf("events = %d, want 1", len(recorder.events))
	}
	event := recorder.events[0]
	if event.EventType != audit.EventTypeACAccessDenied {
		t.Errorf("EventType = %s", event.EventType)
	}
	if event.Status != audit.EventStatusDenied {
		t.Errorf("Status = %s", event.Status)
	}
	if event.OrganizationID == nil || *event.OrganizationID != 1 {
		t.Errorf("OrganizationID = %v, want 1", event.OrganizationID)
	}

	// A granted check stays silent.
	allowed, err = gate.HasPermission(ctx, 1, "owner", accesscontrol.Statements{
		"organization": {"delete"},
	})
	if err != nil || !allowed {
		t.Fatalf("allowed = %t, err = %v", allowed, err)
	}
	if len(recorder.events) != 1 {
		t.Errorf("events = %d, want 1", len(recorder.events))
	}
}
