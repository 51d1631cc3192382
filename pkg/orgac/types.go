package orgac

import (
	"context"
	"regexp"
	"time"

	"github.com/platware/orgauth/pkg/accesscontrol"
)

// Role is a custom role persisted for a single organization. Permission is
// the role's statement set; names are stored lowercased.
type Role struct {
	ID               int64                      `json:"id"`
	OrganizationID   int64                      `json:"organizationId"`
	Role             string                     `json:"role"`
	Permission       accesscontrol.Statements   `json:"permission"`
	AdditionalFields map[string]interface{}     `json:"additionalFields,omitempty"`
	CreatedAt        time.Time                  `json:"createdAt"`
	UpdatedAt        time.Time                  `json:"updatedAt"`
}

// Resource is a custom resource persisted for a single organization. Its
// Permissions list is the set of actions roles may request on it.
type Resource struct {
	ID               int64                  `json:"id"`
	OrganizationID   int64                  `json:"organizationId"`
	Resource         string                 `json:"resource"`
	Permissions      []string               `json:"permissions"`
	IsProtected      bool                   `json:"isProtected"`
	AdditionalFields map[string]interface{} `json:"additionalFields,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// Member is an organization membership row. Role may hold several role
// names joined by commas; any one of them granting a permission is enough.
type Member struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	UserID         int64     `json:"userId"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateRoleInput is the payload for creating a custom role.
type CreateRoleInput struct {
	Role             string                   `json:"role" validate:"required"`
	Permission       accesscontrol.Statements `json:"permission" validate:"required"`
	AdditionalFields map[string]interface{}   `json:"additionalFields,omitempty"`
}

// UpdateRoleInput is the payload for updating a custom role. Nil fields are
// left unchanged.
type UpdateRoleInput struct {
	Role             string                   `json:"role" validate:"required"`
	NewName          string                   `json:"newName,omitempty"`
	Permission       accesscontrol.Statements `json:"permission,omitempty"`
	AdditionalFields map[string]interface{}   `json:"additionalFields,omitempty"`
}

// CreateResourceInput is the payload for registering a custom resource.
type CreateResourceInput struct {
	Resource         string                 `json:"resource" validate:"required"`
	Permissions      []string               `json:"permissions" validate:"required"`
	AdditionalFields map[string]interface{} `json:"additionalFields,omitempty"`
}

// UpdateResourceInput is the payload for updating a custom resource.
type UpdateResourceInput struct {
	Resource         string                 `json:"resource" validate:"required"`
	Permissions      []string               `json:"permissions" validate:"required"`
	AdditionalFields map[string]interface{} `json:"additionalFields,omitempty"`
}

// RoleLimit resolves the maximum number of custom roles an organization may
// create. A nil RoleLimit means unbounded.
type RoleLimit func(ctx context.Context, organizationID int64) (int, error)

// StaticRoleLimit returns a RoleLimit that is the same for every organization.
func StaticRoleLimit(n int) RoleLimit {
	return func(context.Context, int64) (int, error) { return n, nil }
}

// RoleHooks are optional callbacks around role mutations. Before hooks may
// replace the input; the registry re-validates whatever they return, so a
// hook cannot bypass naming, limit, or delegation checks.
type RoleHooks struct {
	BeforeCreate func(ctx context.Context, organizationID int64, input *CreateRoleInput) (*CreateRoleInput, error)
	AfterCreate  func(ctx context.Context, role *Role) error
	BeforeUpdate func(ctx context.Context, organizationID int64, input *UpdateRoleInput) (*UpdateRoleInput, error)
	AfterUpdate  func(ctx context.Context, role *Role) error
	BeforeDelete func(ctx context.Context, role *Role) error
	AfterDelete  func(ctx context.Context, role *Role) error
}

const (
	// DefaultMaximumResourcesPerOrganization caps custom resources per org.
	DefaultMaximumResourcesPerOrganization = 50

	// DefaultCompiledRoleCacheSize bounds the gate's per-role LRU cache.
	DefaultCompiledRoleCacheSize = 512

	maxResourceNameLength = 50
)

var resourceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// DefaultReservedResourceNames are resource names owned by the core system
// and never available to custom resources.
var DefaultReservedResourceNames = []string{
	"organization", "member", "invitation", "team", "ac",
}

// Config carries the statement model and policy knobs shared by the gate
// and the registries.
type Config struct {
	// AC is the default statement set. When nil, dynamic access control is
	// disabled and every registry operation fails with MISSING_AC_INSTANCE.
	AC *accesscontrol.AccessControl

	// Roles maps lowercase role names to pre-defined roles. These names
	// collide with custom roles and cannot be deleted.
	Roles map[string]*accesscontrol.Role

	// CreatorRole is assigned to the user who creates an organization.
	CreatorRole string

	ReservedResourceNames           []string
	MaximumResourcesPerOrganization int
	MaximumRolesPerOrganization     RoleLimit
	RoleHooks                       RoleHooks

	CompiledRoleCacheSize int
}

// DefaultStatements is the statement set the core organization plugin ships
// with. Custom resources are merged on top of it per organization.
func DefaultStatements() accesscontrol.Statements {
	return accesscontrol.Statements{
		"organization": {"update", "delete"},
		"member":       {"create", "update", "delete"},
		"invitation":   {"create", "cancel"},
		"team":         {"create", "update", "delete"},
		"ac":           {"create", "read", "update", "delete"},
	}
}

// DefaultRoles returns the pre-defined owner, admin, and member roles over
// the default statement set.
func DefaultRoles() map[string]*accesscontrol.Role {
	return map[string]*accesscontrol.Role{
		"owner": accesscontrol.NewRole(DefaultStatements()),
		"admin": accesscontrol.NewRole(accesscontrol.Statements{
			"organization": {"update"},
			"member":       {"create", "update", "delete"},
			"invitation":   {"create", "cancel"},
			"team":         {"create", "update", "delete"},
			"ac":           {"create", "read", "update", "delete"},
		}),
		"member": accesscontrol.NewRole(accesscontrol.Statements{}),
	}
}

// DefaultConfig returns a Config wired with the default statements, roles,
// caps, and reserved names.
func DefaultConfig() Config {
	return Config{
		AC:                              accesscontrol.New(DefaultStatements()),
		Roles:                           DefaultRoles(),
		CreatorRole:                     "owner",
		ReservedResourceNames:           DefaultReservedResourceNames,
		MaximumResourcesPerOrganization: DefaultMaximumResourcesPerOrganization,
		CompiledRoleCacheSize:           DefaultCompiledRoleCacheSize,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.CreatorRole == "" {
		out.CreatorRole = "owner"
	}
	if out.ReservedResourceNames == nil {
		out.ReservedResourceNames = DefaultReservedResourceNames
	}
	if out.MaximumResourcesPerOrganization == 0 {
		out.MaximumResourcesPerOrganization = DefaultMaximumResourcesPerOrganization
	}
	if out.CompiledRoleCacheSize <= 0 {
		out.CompiledRoleCacheSize = DefaultCompiledRoleCacheSize
	}
	return out
}

// ValidResourceName reports whether name satisfies the charset and length
// rules for custom resource names.
func ValidResourceName(name string) bool {
	return len(name) >= 1 && len(name) <= maxResourceNameLength && resourceNamePattern.MatchString(name)
}
