package accesscontrol

import (
	"fmt"
	"sort"
)

// AccessControl owns a statement dictionary and mints roles validated against
// it. Instances are immutable after construction; merging per-organization
// custom statements produces a new instance (see WithStatements).
type AccessControl struct {
	statements Statements
}

// New creates an AccessControl over the given statement dictionary.
func New(statements Statements) *AccessControl {
	return &AccessControl{statements: statements.Clone()}
}

// Statements returns a copy of the statement dictionary.
func (ac *AccessControl) Statements() Statements {
	return ac.statements.Clone()
}

// WithStatements returns a new AccessControl whose dictionary is this one
// merged with overlay (overlay resources win on name collision).
func (ac *AccessControl) WithStatements(overlay Statements) *AccessControl {
	return &AccessControl{statements: Merge(ac.statements, overlay)}
}

// CheckInvalidResources rejects a permission map that references resources
// absent from the statement dictionary. This runs before any role create or
// update so a role can never hold a dangling reference to a nonexistent or
// misspelled resource.
func (ac *AccessControl) CheckInvalidResources(grants Statements) error {
	var invalid []string
	for resource := range grants {
		if _, ok := ac.statements[resource]; !ok {
			invalid = append(invalid, resource)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return &InvalidResourceError{Resources: invalid}
	}
	return nil
}

// NewRole mints a role granting the given permission map. The grants are not
// validated here; call CheckInvalidResources first when the map comes from
// untrusted input.
func (ac *AccessControl) NewRole(grants Statements) *Role {
	return &Role{grants: grants.Clone()}
}

// Role is a named set of granted actions per resource. Roles are evaluated
// against a requested permission map and either authorize the whole request
// or deny it.
type Role struct {
	grants Statements
}

// NewRole constructs a role directly from a grant map. Used for predefined
// roles compiled into the application.
func NewRole(grants Statements) *Role {
	return &Role{grants: grants.Clone()}
}

// Grants returns a copy of the role's granted permission map.
func (r *Role) Grants() Statements {
	return r.grants.Clone()
}

// Result is the outcome of an authorization request.
type Result struct {
	Success bool
	Reason  string
}

// Authorize checks a requested permission map against the role's grants.
// Every requested action on every requested resource must be granted; a
// resource the role does not mention denies all actions on it. An empty
// request authorizes trivially.
func (r *Role) Authorize(requested Statements) Result {
	for resource, actions := range requested {
		granted, ok := r.grants[resource]
		if !ok {
			return Result{Reason: fmt.Sprintf("no access to resource %q", resource)}
		}
		for _, action := range actions {
			if !contains(granted, action) {
				return Result{Reason: fmt.Sprintf("missing permission %s:%s", resource, action)}
			}
		}
	}
	return Result{Success: true}
}

func contains(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}
