package orgac

import (
	"context"
	"strings"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/observability"
)

// ResourceRegistry manages an organization's resources. The protected
// defaults are read-only; custom resources support full CRUD, and every
// mutation invalidates the organization's statement cache so checks see the
// change immediately.
type ResourceRegistry struct {
	config Config
	store  Store
	loader *StatementLoader
	gate   *Gate
	logger *observability.Logger
	audit  audit.Logger
}

// NewResourceRegistry creates a resource registry.
func NewResourceRegistry(config Config, store Store, loader *StatementLoader, gate *Gate, logger *observability.Logger, auditLogger audit.Logger) *ResourceRegistry {
	return &ResourceRegistry{
		config: config.withDefaults(),
		store:  store,
		loader: loader,
		gate:   gate,
		logger: logger,
		audit:  auditLogger,
	}
}

func (r *ResourceRegistry) requireDynamic() error {
	if r.config.AC == nil {
		return E(CodeMissingACInstance)
	}
	return nil
}

// requireACPermission loads the caller's membership and checks one action
// on the ac resource.
func (r *ResourceRegistry) requireACPermission(ctx context.Context, organizationID, userID int64, action string, denied Code) (*Member, error) {
	member, err := r.gate.Member(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	allowed, err := r.gate.HasPermission(ctx, organizationID, member.Role, accesscontrol.Statements{
		"ac": {action},
	})
	if err != nil {
		return nil, err
	}
	if !allowed {
		r.logDenied(member, "resource operation denied: missing ac:"+action)
		return nil, E(denied)
	}
	return member, nil
}

func (r *ResourceRegistry) logDenied(member *Member, message string) {
	r.logger.WithFields(map[string]interface{}{
		"organization_id": member.OrganizationID,
		"user_id":         member.UserID,
		"role":            member.Role,
	}).Error(message)
}

func (r *ResourceRegistry) reserved(name string) bool {
	for _, reserved := range r.config.ReservedResourceNames {
		if strings.EqualFold(name, reserved) {
			return true
		}
	}
	return false
}

func (r *ResourceRegistry) validateName(name string) error {
	if !ValidResourceName(name) {
		return E(CodeInvalidResourceName)
	}
	if r.reserved(name) {
		return E(CodeResourceNameReserved)
	}
	return nil
}

func validatePermissions(permissions []string) error {
	if len(permissions) == 0 {
		return E(CodeInvalidPermissionsArray)
	}
	for _, permission := range permissions {
		if strings.TrimSpace(permission) == "" {
			return E(CodeInvalidPermissionsArray)
		}
	}
	return nil
}

// Create registers a custom resource for an organization.
func (r *ResourceRegistry) Create(ctx context.Context, organizationID, userID int64, input *CreateResourceInput) (*Resource, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}
	member, err := r.requireACPermission(ctx, organizationID, userID, "create", CodeNotAllowedToCreateResource)
	if err != nil {
		return nil, err
	}
	if err := r.validateName(input.Resource); err != nil {
		r.logDenied(member, "resource validation failed: "+input.Resource)
		return nil, err
	}
	if err := validatePermissions(input.Permissions); err != nil {
		r.logDenied(member, "resource validation failed: "+input.Resource)
		return nil, err
	}

	count, err := r.store.CountResources(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if count >= r.config.MaximumResourcesPerOrganization {
		return nil, E(CodeTooManyResources)
	}

	if _, err := r.store.GetResource(ctx, organizationID, input.Resource); err == nil {
		return nil, E(CodeResourceNameAlreadyTaken)
	} else if err != ErrResourceNotFound {
		return nil, err
	}

	resource := &Resource{
		OrganizationID:   organizationID,
		Resource:         input.Resource,
		Permissions:      append([]string(nil), input.Permissions...),
		AdditionalFields: input.AdditionalFields,
	}
	if err := r.store.CreateResource(ctx, resource); err != nil {
		return nil, err
	}

	if err := r.loader.Invalidate(ctx, organizationID); err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"resource":        resource.Resource,
	}).Info("custom resource created")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACResourceCreate, &userID,
			audit.ResourceTypeACResource, resource.Resource, nil, "custom resource created")
	}

	return resource, nil
}

// Update replaces a custom resource's permissions and additional fields.
// The resource cannot be renamed; delete and recreate instead.
func (r *ResourceRegistry) Update(ctx context.Context, organizationID, userID int64, input *UpdateResourceInput) (*Resource, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}
	member, err := r.requireACPermission(ctx, organizationID, userID, "update", CodeNotAllowedToUpdateResource)
	if err != nil {
		return nil, err
	}
	if r.reserved(input.Resource) {
		r.logDenied(member, "cannot update protected resource: "+input.Resource)
		return nil, E(CodeResourceNameReserved)
	}
	if err := validatePermissions(input.Permissions); err != nil {
		r.logDenied(member, "resource validation failed: "+input.Resource)
		return nil, err
	}

	resource, err := r.store.GetResource(ctx, organizationID, input.Resource)
	if err == ErrResourceNotFound {
		return nil, E(CodeResourceNotFound)
	}
	if err != nil {
		return nil, err
	}

	resource.Permissions = append([]string(nil), input.Permissions...)
	if input.AdditionalFields != nil {
		resource.AdditionalFields = input.AdditionalFields
	}
	if err := r.store.UpdateResource(ctx, resource); err != nil {
		return nil, err
	}

	if err := r.loader.Invalidate(ctx, organizationID); err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"resource":        resource.Resource,
	}).Info("custom resource updated")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACResourceUpdate, &userID,
			audit.ResourceTypeACResource, resource.Resource, nil, "custom resource updated")
	}

	return resource, nil
}

// Delete removes a custom resource. The delete is refused while any custom
// role still references the resource.
func (r *ResourceRegistry) Delete(ctx context.Context, organizationID, userID int64, name string) error {
	if err := r.requireDynamic(); err != nil {
		return err
	}
	member, err := r.requireACPermission(ctx, organizationID, userID, "delete", CodeNotAllowedToDeleteResource)
	if err != nil {
		return err
	}
	if r.reserved(name) {
		r.logDenied(member, "cannot delete protected resource: "+name)
		return E(CodeResourceNameReserved)
	}

	if _, err := r.store.GetResource(ctx, organizationID, name); err == ErrResourceNotFound {
		return E(CodeResourceNotFound)
	} else if err != nil {
		return err
	}

	roles, err := r.store.ListRoles(ctx, organizationID)
	if err != nil {
		return err
	}
	for _, role := range roles {
		if _, inUse := role.Permission[name]; inUse {
			return Ef(CodeResourceInUse, "the resource is referenced by role "+role.Role)
		}
	}

	if err := r.store.DeleteResource(ctx, organizationID, name); err != nil {
		return err
	}

	if err := r.loader.Invalidate(ctx, organizationID); err != nil {
		return err
	}

	r.logger.WithFields(map[string]interface{}{
		"organization_id": organizationID,
		"resource":        name,
	}).Info("custom resource deleted")
	if r.audit != nil {
		r.audit.LogDataMutation(ctx, audit.EventTypeACResourceDelete, &userID,
			audit.ResourceTypeACResource, name, nil, "custom resource deleted")
	}

	return nil
}

// Get resolves one resource by name: a protected built-in from the default
// statement set first, then a custom resource defined by the organization.
func (r *ResourceRegistry) Get(ctx context.Context, organizationID, userID int64, name string) (*Resource, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}
	if _, err := r.requireACPermission(ctx, organizationID, userID, "read", CodeNotAllowedToReadResource); err != nil {
		return nil, err
	}

	defaults := r.config.AC.Statements()
	if actions, ok := defaults[name]; ok {
		return &Resource{
			OrganizationID: organizationID,
			Resource:       name,
			Permissions:    actions,
			IsProtected:    true,
		}, nil
	}

	resource, err := r.store.GetResource(ctx, organizationID, name)
	if err == ErrResourceNotFound {
		return nil, E(CodeResourceNotFound)
	}
	if err != nil {
		return nil, err
	}
	return resource, nil
}

// List retrieves an organization's resources: the protected defaults first,
// then its custom resources.
func (r *ResourceRegistry) List(ctx context.Context, organizationID, userID int64) ([]Resource, error) {
	if err := r.requireDynamic(); err != nil {
		return nil, err
	}
	if _, err := r.requireACPermission(ctx, organizationID, userID, "read", CodeNotAllowedToReadResource); err != nil {
		return nil, err
	}

	custom, err := r.store.ListResources(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	defaults := r.config.AC.Statements()
	resources := make([]Resource, 0, len(defaults)+len(custom))
	for _, name := range defaults.Resources() {
		resources = append(resources, Resource{
			OrganizationID: organizationID,
			Resource:       name,
			Permissions:    defaults[name],
			IsProtected:    true,
		})
	}
	return append(resources, custom...), nil
}
