package orgac

import (
	"context"
	"strings"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/observability"
)

// RoleRegistry manages an organization's custom roles. Role names are
// stored lowercased; collisions against pre-defined roles are checked
// case-insensitively. Before hooks may rewrite the input, and the registry
// validates whatever they return.
type RoleRegistry struct {
	config Config
	store  Store
	gate   *Gate
	logger *observability.Logger
	audit  audit.Logger
}

// NewRoleRegistry creates a role registry.
func NewRoleRegistry(config Config, store Store, gate *Gate, logger *observability.Logger, auditLogger audit.Logger) *RoleRegistry {
	return &RoleRegistry{
		config: config.withDefaults(),
		store:  store,
		gate:   gate,
		logger: logger,
		audit:  auditLogger,
	}
}

func (r *RoleRegistry) requireDynamic() error {
	if r.config.AC == nil {
		return E(CodeMissingACInstance)
	}
	return nil
}

func (r *RoleRegistry) requireACPermission(ctx context.Context, member *Member, action string, denied Code) error {
	allowed, err := r.gate.HasPermission(ctx, member.OrganizationID, member.Role, accesscontrol.Statements{
		"ac": {action},
	})
	if err != nil {
		return err
	}
	if !allowed {
		r.logDenied(member, "role operation denied: missing ac:"+action)
		return E(denied)
	}
	return nil
}

func (r *RoleRegistry) logDenied(member *Member, message string) {
	r.logger.WithFields(map[string]interface{}{
		"organization_id": member.OrganizationID,
		"user_id":         member.UserID,
		"role":            member.Role,
	}).Error(message)
}

func normalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func validateRoleName(name string) error {
	if name == "" || len(name) > maxResourceNameLength {
		return E(CodeInvalidRoleName)
	}
	return nil
}

func (r *RoleRegistry) predefined(name string) bool {
	_, ok := r.config.Roles[name]
	return ok
}

// checkNameAvailable rejects names held by a pre-defined role or another
// custom role in the organization.
func (r *RoleRegistry) checkNameAvailable(ctx context.Context, organizationID int64, name string) error {
	if r.predefined(name) {
		return E(CodeRoleNameAlreadyTaken)
	}
	if _, err := r.store.GetRole(ctx, organizationID, name); err == nil {
		return E(CodeRoleNameAlreadyTaken)
	} else if err != ErrRoleNotFound {
		return err
	}
	return nil
}

// checkGrants validates a role's statement set: every resource must exist
// in the organization's effective statements, and the grantor must already
// hold each granted permission.
func (r *RoleRegistry) checkGrants(ctx context.Context, member *Member, grants accesscontrol.Statements) error {
	ac, err := r.gate.Statements(ctx, member.OrganizationID)
	if err != nil {
		return err
	}
	if err := ac.CheckInvalidResources(grants); err != nil {
		if invalid, ok := err.(*accesscontrol.InvalidResourceError); ok {
			return Ef(CodeInvalidResource, "unknown resources: "+strings.Join(invalid.Resources, ", "))
		}
		return err
	}
	return r.gate.RequireEachPermission(ctx, member.OrganizationID, member.Role, grants)
}

func (r *RoleRegistry) checkRoleLimit(ctx context.Context, organizationID int64) error {
	if r.config.MaximumRolesPerOrganization == nil {
		return nil
	}
	limit, err := r.config.MaximumRolesPerOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	count, err := r.store.CountRoles(ctx, organizationID)
	if err != nil {
		return err
	}
	if count >= limit {
		return E(CodeTooManyRoles)
	}
	return nil
}

// Create adds a custom role. The caller must hold ac:create plus every
// permission the new role grants.
func (r *RoleRegistry) Create(ctx context.Context, organizationID, userID int64, input *CreateRoleInput) (*Role, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}

	member, err := r.store.GetMember(ctx, organizationID, userID)
	if err == ErrMemberNotFound {
		return nil, E(CodeMustBeInOrganizationToCreateRole)
	}
	if err != nil {
		return nil, err
	}
	if err := r.requireACPermission(ctx, member, "create", CodeNotAllowedToCreateRole); err != nil {
		return nil, err
	}

	if hook := r.config.RoleHooks.BeforeCreate; hook != nil {
		replaced, err := hook(ctx, organizationID, input)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			input = replaced
		}
	}

	// Validation runs after the hook so a hook cannot smuggle in a name
	// collision or a permission the caller does not hold.
	name := normalizeRoleName(input.Role)
	if err := validateRoleName(name); err != nil {
		r.logDenied(member, "role validation failed: "+name)
		return nil, err
	}
	if err := r.checkNameAvailable(ctx, organizationID, name); err != nil {
		return nil, err
	}
	if err := r.checkRoleLimit(ctx, organizationID); err != nil {
		return nil, err
	}
	if err := r.checkGrants(ctx, member, input.Permission); err != nil {
		r.logDenied(member, "role grant check failed: "+name)
		return nil, err
	}

	role := &Role{
		OrganizationID:   organizationID,
		Role:             name,
		Permission:       input.Permission.Clone(),
		AdditionalFields: input.AdditionalFields,
	}
	if err := r.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	if hook := r.config.RoleHooks.AfterCreate; hook != nil {
		if err := hook(ctx, role); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"role":            role.Role,
	}).Info("custom role created")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACRoleCreate, &userID,
			audit.ResourceTypeRole, role.Role, nil, "custom role created")
	}

	return role, nil
}

// Update rewrites a custom role's grants, fields, or name. The caller must
// hold ac:update plus every permission the updated role grants.
func (r *RoleRegistry) Update(ctx context.Context, organizationID, userID int64, input *UpdateRoleInput) (*Role, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}

	member, err := r.gate.Member(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if err := r.requireACPermission(ctx, member, "update", CodeNotAllowedToUpdateRole); err != nil {
		return nil, err
	}

	if hook := r.config.RoleHooks.BeforeUpdate; hook != nil {
		replaced, err := hook(ctx, organizationID, input)
		if err != nil {
			return nil, err
		}
		if replaced != nil {
			input = replaced
		}
	}

	name := normalizeRoleName(input.Role)
	role, err := r.store.GetRole(ctx, organizationID, name)
	if err == ErrRoleNotFound {
		return nil, E(CodeRoleNotFound)
	}
	if err != nil {
		return nil, err
	}

	oldName := role.Role
	if input.NewName != "" {
		newName := normalizeRoleName(input.NewName)
		if err := validateRoleName(newName); err != nil {
			return nil, err
		}
		if newName != role.Role {
			if err := r.checkNameAvailable(ctx, organizationID, newName); err != nil {
				return nil, err
			}
			role.Role = newName
		}
	}
	if input.Permission != nil {
		if err := r.checkGrants(ctx, member, input.Permission); err != nil {
			return nil, err
		}
		role.Permission = input.Permission.Clone()
	}
	if input.AdditionalFields != nil {
		role.AdditionalFields = input.AdditionalFields
	}

	if err := r.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	r.gate.InvalidateRole(organizationID, oldName)
	r.gate.InvalidateRole(organizationID, role.Role)

	if hook := r.config.RoleHooks.AfterUpdate; hook != nil {
		if err := hook(ctx, role); err != nil {
			return nil, err
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"role":            role.Role,
	}).Info("custom role updated")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACRoleUpdate, &userID,
			audit.ResourceTypeRole, role.Role, nil, "custom role updated")
	}

	return role, nil
}

// Delete removes a custom role. Pre-defined roles cannot be deleted.
func (r *RoleRegistry) Delete(ctx context.Context, organizationID, userID int64, name string) error {
	if err := r.requireDynamic(); err != nil {
		return err
	}

	member, err := r.gate.Member(ctx, organizationID, userID)
	if err != nil {
		return err
	}
	if err := r.requireACPermission(ctx, member, "delete", CodeNotAllowedToDeleteRole); err != nil {
		return err
	}

	name = normalizeRoleName(name)
	if r.predefined(name) {
		return E(CodeCannotDeletePredefined)
	}

	role, err := r.store.GetRole(ctx, organizationID, name)
	if err == ErrRoleNotFound {
		return E(CodeRoleNotFound)
	}
	if err != nil {
		return err
	}

	if hook := r.config.RoleHooks.BeforeDelete; hook != nil {
		if err := hook(ctx, role); err != nil {
			return err
		}
	}

	if err := r.store.DeleteRole(ctx, organizationID, name); err != nil {
		if err == ErrRoleNotFound {
			return E(CodeRoleNotFound)
		}
		return err
	}

	r.gate.InvalidateRole(organizationID, name)

	if hook := r.config.RoleHooks.AfterDelete; hook != nil {
		if err := hook(ctx, role); err != nil {
			return err
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"role":            name,
	}).Info("custom role deleted")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACRoleDelete, &userID,
			audit.ResourceTypeRole, name, nil, "custom role deleted")
	}

	return nil
}

// Get resolves one role by name: a custom role if one exists, otherwise a
// pre-defined role rendered as a read-only record.
func (r *RoleRegistry) Get(ctx context.Context, organizationID, userID int64, name string) (*Role, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}

	member, err := r.gate.Member(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if err := r.requireACPermission(ctx, member, "read", CodeNotAllowedToReadRole); err != nil {
		return nil, err
	}

	name = normalizeRoleName(name)
	role, err := r.store.GetRole(ctx, organizationID, name)
	if err == nil {
		return role, nil
	}
	if err != ErrRoleNotFound {
		return nil, err
	}

	if predefined, ok := r.config.Roles[name]; ok {
		return &Role{
			OrganizationID: organizationID,
			Role:           name,
			Permission:     predefined.Grants(),
		}, nil
	}
	return nil, E(CodeRoleNotFound)
}

// List retrieves an organization's custom roles.
func (r *RoleRegistry) List(ctx context.Context, organizationID, userID int64) ([]Role, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}

	member, err := r.gate.Member(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if err := r.requireACPermission(ctx, member, "read", CodeNotAllowedToListRoles); err != nil {
		return nil, err
	}

	return r.store.ListRoles(ctx, organizationID)
}
