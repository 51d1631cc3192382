package orgac

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/httputil"
	"github.com/platware/orgauth/pkg/session"
)

// Handlers provides HTTP handlers for the access-control endpoints. All
// routes require an authenticated session with an active organization; an
// explicit organizationId in the body overrides the session's.
type Handlers struct {
	roles     *RoleRegistry
	resources *ResourceRegistry
	gate      *Gate
	validate  *validator.Validate
}

// NewHandlers creates access-control handlers.
func NewHandlers(roles *RoleRegistry, resources *ResourceRegistry, gate *Gate) *Handlers {
	return &Handlers{
		roles:     roles,
		resources: resources,
		gate:      gate,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers all access-control routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Role management
	router.HandleFunc("/ac/roles", h.CreateRole).Methods("POST")
	router.HandleFunc("/ac/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/ac/roles/{role}", h.GetRole).Methods("GET")
	router.HandleFunc("/ac/roles/{role}", h.UpdateRole).Methods("PUT")
	router.HandleFunc("/ac/roles/{role}", h.DeleteRole).Methods("DELETE")

	// Resource management
	router.HandleFunc("/ac/resources", h.CreateResource).Methods("POST")
	router.HandleFunc("/ac/resources", h.ListResources).Methods("GET")
	router.HandleFunc("/ac/resources/{resource}", h.GetResource).Methods("GET")
	router.HandleFunc("/ac/resources/{resource}", h.UpdateResource).Methods("PUT")
	router.HandleFunc("/ac/resources/{resource}", h.DeleteResource).Methods("DELETE")

	// Permission checking
	router.HandleFunc("/ac/has-permission", h.HasPermission).Methods("POST")
}

// writeACError renders coded access-control errors with their fixed status.
func writeACError(w http.ResponseWriter, err error) {
	if coded, ok := AsError(err); ok {
		httputil.WriteJSON(w, coded.Status, map[string]interface{}{
			"error": map[string]string{
				"code":    string(coded.Code),
				"message": coded.Message,
			},
		})
		return
	}
	httputil.WriteInternalError(w, err)
}

// resolveScope extracts the caller and organization from the session. A
// non-zero override takes precedence over the session's active organization.
func resolveScope(r *http.Request, override int64) (userID, organizationID int64, err error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return 0, 0, E(CodeNotAMemberOfOrganization)
	}
	organizationID = sess.ActiveOrganizationID
	if override != 0 {
		organizationID = override
	}
	if organizationID == 0 {
		return 0, 0, E(CodeNoActiveOrganization)
	}
	return sess.UserID, organizationID, nil
}

// CreateRole creates a custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreateRoleInput
		OrganizationID int64 `json:"organizationId,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req.CreateRoleInput); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	userID, organizationID, err := resolveScope(r, req.OrganizationID)
	if err != nil {
		writeACError(w, err)
		return
	}

	role, err := h.roles.Create(r.Context(), organizationID, userID, &req.CreateRoleInput)
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// ListRoles lists the organization's custom roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	roles, err := h.roles.List(r.Context(), organizationID, userID)
	if err != nil {
		writeACError(w, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole retrieves one role by name
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "role")
	if !ok {
		return
	}
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	role, err := h.roles.Get(r.Context(), organizationID, userID, name)
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRole updates a custom role
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "role")
	if !ok {
		return
	}

	var req struct {
		NewName          string                   `json:"newName,omitempty"`
		Permission       accesscontrol.Statements `json:"permission,omitempty"`
		AdditionalFields map[string]interface{}   `json:"additionalFields,omitempty"`
		OrganizationID   int64                    `json:"organizationId,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID, organizationID, err := resolveScope(r, req.OrganizationID)
	if err != nil {
		writeACError(w, err)
		return
	}

	role, err := h.roles.Update(r.Context(), organizationID, userID, &UpdateRoleInput{
		Role:             name,
		NewName:          req.NewName,
		Permission:       req.Permission,
		AdditionalFields: req.AdditionalFields,
	})
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a custom role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "role")
	if !ok {
		return
	}
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	if err := h.roles.Delete(r.Context(), organizationID, userID, name); err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateResource registers a custom resource
func (h *Handlers) CreateResource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CreateResourceInput
		OrganizationID int64 `json:"organizationId,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req.CreateResourceInput); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	userID, organizationID, err := resolveScope(r, req.OrganizationID)
	if err != nil {
		writeACError(w, err)
		return
	}

	resource, err := h.resources.Create(r.Context(), organizationID, userID, &req.CreateResourceInput)
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteCreated(w, resource)
}

// ListResources lists the organization's resources, protected defaults
// included
func (h *Handlers) ListResources(w http.ResponseWriter, r *http.Request) {
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	resources, err := h.resources.List(r.Context(), organizationID, userID)
	if err != nil {
		writeACError(w, err)
		return
	}
	if resources == nil {
		resources = []Resource{}
	}
	httputil.WriteSuccess(w, resources)
}

// GetResource retrieves one resource by name, resolving protected
// defaults before custom resources
func (h *Handlers) GetResource(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "resource")
	if !ok {
		return
	}
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	resource, err := h.resources.Get(r.Context(), organizationID, userID, name)
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteSuccess(w, resource)
}

// UpdateResource updates a custom resource's permissions
func (h *Handlers) UpdateResource(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "resource")
	if !ok {
		return
	}

	var req struct {
		Permissions      []string               `json:"permissions" validate:"required"`
		AdditionalFields map[string]interface{} `json:"additionalFields,omitempty"`
		OrganizationID   int64                  `json:"organizationId,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	userID, organizationID, err := resolveScope(r, req.OrganizationID)
	if err != nil {
		writeACError(w, err)
		return
	}

	resource, err := h.resources.Update(r.Context(), organizationID, userID, &UpdateResourceInput{
		Resource:         name,
		Permissions:      req.Permissions,
		AdditionalFields: req.AdditionalFields,
	})
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteSuccess(w, resource)
}

// DeleteResource removes a custom resource
func (h *Handlers) DeleteResource(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "resource")
	if !ok {
		return
	}
	override, err := httputil.ParseQueryInt64(r, "organizationId", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, organizationID, err := resolveScope(r, override)
	if err != nil {
		writeACError(w, err)
		return
	}

	if err := h.resources.Delete(r.Context(), organizationID, userID, name); err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// HasPermission checks the caller's permissions in the active organization
func (h *Handlers) HasPermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permissions    accesscontrol.Statements `json:"permissions" validate:"required"`
		OrganizationID int64                    `json:"organizationId,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	userID, organizationID, err := resolveScope(r, req.OrganizationID)
	if err != nil {
		writeACError(w, err)
		return
	}

	member, err := h.gate.Member(r.Context(), organizationID, userID)
	if err != nil {
		writeACError(w, err)
		return
	}

	allowed, err := h.gate.HasPermission(r.Context(), organizationID, member.Role, req.Permissions)
	if err != nil {
		writeACError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]bool{"success": allowed})
}
