package accesscontrol

import "testing"

func TestRole_Authorize(t *testing.T) {
	role := NewRole(Statements{
		"a": {"x", "y"},
	})

	tests := []struct {
		name      string
		requested Statements
		want      bool
	}{
		{"granted action", Statements{"a": {"x"}}, true},
		{"all granted actions", Statements{"a": {"x", "y"}}, true},
		{"ungranted action", Statements{"a": {"z"}}, false},
		{"partially ungranted", Statements{"a": {"x", "z"}}, false},
		{"unknown resource denies", Statements{"b": {"x"}}, false},
		{"mixed resources require all", Statements{"a": {"x"}, "b": {"x"}}, false},
		{"empty request", Statements{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := role.Authorize(tt.requested)
			if got.Success != tt.want {
				t.Errorf("Authorize(%v) = %v (reason %q), want success=%v",
					tt.requested, got.Success, got.Reason, tt.want)
			}
		})
	}
}

func TestRole_AuthorizeMultiResource(t *testing.T) {
	role := NewRole(Statements{
		"docs":   {"read", "write"},
		"member": {"create"},
	})

	res := role.Authorize(Statements{"docs": {"read"}, "member": {"create"}})
	if !res.Success {
		t.Errorf("expected multi-resource request to pass, got reason %q", res.Reason)
	}

	res = role.Authorize(Statements{"docs": {"read"}, "member": {"delete"}})
	if res.Success {
		t.Error("expected request with one ungranted action to fail as a whole")
	}
}

func TestAccessControl_CheckInvalidResources(t *testing.T) {
	ac := New(Statements{
		"organization": {"update", "delete"},
		"member":       {"create", "update", "delete"},
	})

	if err := ac.CheckInvalidResources(Statements{"member": {"create"}}); err != nil {
		t.Errorf("expected known resource to validate, got %v", err)
	}

	err := ac.CheckInvalidResources(Statements{"membr": {"create"}, "widget": {"spin"}})
	if err == nil {
		t.Fatal("expected unknown resources to be rejected")
	}
	ire, ok := err.(*InvalidResourceError)
	if !ok {
		t.Fatalf("expected *InvalidResourceError, got %T", err)
	}
	if len(ire.Resources) != 2 || ire.Resources[0] != "membr" || ire.Resources[1] != "widget" {
		t.Errorf("unexpected invalid resource list: %v", ire.Resources)
	}
}

func TestAccessControl_WithStatements(t *testing.T) {
	ac := New(Statements{
		"member": {"create"},
	})

	merged := ac.WithStatements(Statements{
		"member": {"read"},
		"docs":   {"read", "write"},
	})

	// Overlay replaces the base definition of the same resource.
	if merged.Statements().Grants("member", "create") {
		t.Error("expected overlay to replace base member statement")
	}
	if !merged.Statements().Grants("member", "read") {
		t.Error("expected overlay member statement to apply")
	}
	if !merged.Statements().Grants("docs", "write") {
		t.Error("expected overlay-only resource to contribute")
	}

	// Base instance is unchanged.
	if !ac.Statements().Grants("member", "create") {
		t.Error("expected base AccessControl to be immutable")
	}
}
