package accesscontrol

import (
	"fmt"
	"sort"
	"strings"
)

// Statements maps a resource name to the ordered list of actions permitted on
// it. Action names are opaque strings; there is no required enum.
type Statements map[string][]string

// Clone returns a deep copy. Mutating the copy never affects the original.
func (s Statements) Clone() Statements {
	if s == nil {
		return nil
	}
	out := make(Statements, len(s))
	for resource, actions := range s {
		out[resource] = append([]string(nil), actions...)
	}
	return out
}

// Resources returns the sorted resource names in the statement set.
func (s Statements) Resources() []string {
	names := make([]string, 0, len(s))
	for resource := range s {
		names = append(names, resource)
	}
	sort.Strings(names)
	return names
}

// Grants reports whether the statement set permits action on resource.
func (s Statements) Grants(resource, action string) bool {
	actions, ok := s[resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// Merge combines a base statement set with an overlay. A resource defined in
// the overlay replaces the base definition of the same name entirely;
// resources unique to either side contribute as-is. Neither input is mutated.
func Merge(base, overlay Statements) Statements {
	merged := base.Clone()
	if merged == nil {
		merged = make(Statements, len(overlay))
	}
	for resource, actions := range overlay {
		merged[resource] = append([]string(nil), actions...)
	}
	return merged
}

// InvalidResourceError reports permission grants that reference resources
// missing from the statement dictionary.
type InvalidResourceError struct {
	Resources []string
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("invalid resource(s): %s", strings.Join(e.Resources, ", "))
}
