package accesscontrol

import (
	"reflect"
	"testing"
)

func TestStatements_Clone(t *testing.T) {
	orig := Statements{"a": {"x", "y"}}
	clone := orig.Clone()

	clone["a"][0] = "mutated"
	clone["b"] = []string{"z"}

	if orig["a"][0] != "x" {
		t.Error("mutating a clone's action slice leaked into the original")
	}
	if _, ok := orig["b"]; ok {
		t.Error("adding a resource to a clone leaked into the original")
	}

	var nilStatements Statements
	if nilStatements.Clone() != nil {
		t.Error("cloning nil should stay nil")
	}
}

func TestMerge(t *testing.T) {
	base := Statements{
		"organization": {"update", "delete"},
		"member":       {"create"},
	}
	overlay := Statements{
		"member": {"read"},
		"docs":   {"read"},
	}

	merged := Merge(base, overlay)

	want := Statements{
		"organization": {"update", "delete"},
		"member":       {"read"},
		"docs":         {"read"},
	}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Merge = %v, want %v", merged, want)
	}

	// Inputs untouched.
	if !reflect.DeepEqual(base["member"], []string{"create"}) {
		t.Error("Merge mutated its base input")
	}
}

func TestStatements_Resources(t *testing.T) {
	s := Statements{"b": {"x"}, "a": {"y"}, "c": nil}
	got := s.Resources()
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resources = %v, want %v", got, want)
	}
}
