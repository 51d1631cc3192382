package orgs

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/httputil"
	"github.com/platware/orgauth/pkg/orgac"
	"github.com/platware/orgauth/pkg/session"
)

// Handlers provides HTTP handlers for organization management. Mutations
// are authorized through the permission gate against the organization's
// default and custom statements.
type Handlers struct {
	service  *Service
	gate     *orgac.Gate
	validate *validator.Validate
}

// NewHandlers creates organization handlers.
func NewHandlers(service *Service, gate *orgac.Gate) *Handlers {
	return &Handlers{
		service:  service,
		gate:     gate,
		validate: validator.New(),
	}
}

// RegisterRoutes registers all organization routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orgs", h.CreateOrganization).Methods("POST")
	router.HandleFunc("/orgs", h.ListOrganizations).Methods("GET")
	router.HandleFunc("/orgs/{id}", h.GetOrganization).Methods("GET")
	router.HandleFunc("/orgs/{id}", h.UpdateOrganization).Methods("PUT")
	router.HandleFunc("/orgs/{id}", h.DeleteOrganization).Methods("DELETE")

	router.HandleFunc("/orgs/{id}/members", h.ListMembers).Methods("GET")
	router.HandleFunc("/orgs/{id}/members/{userId}", h.UpdateMemberRole).Methods("PUT")
	router.HandleFunc("/orgs/{id}/members/{userId}", h.RemoveMember).Methods("DELETE")

	router.HandleFunc("/orgs/{id}/invitations", h.CreateInvitation).Methods("POST")
	router.HandleFunc("/orgs/{id}/invitations", h.ListInvitations).Methods("GET")
	router.HandleFunc("/orgs/{id}/invitations/{invitationId}", h.CancelInvitation).Methods("DELETE")

	router.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")
	router.HandleFunc("/invitations/{token}/reject", h.RejectInvitation).Methods("POST")
}

func writeOrgError(w http.ResponseWriter, err error) {
	switch err {
	case ErrOrganizationNotFound, ErrMemberNotFound, ErrInvitationNotFound:
		httputil.WriteNotFoundError(w, err.Error())
	case ErrSlugTaken, ErrAlreadyMember:
		httputil.WriteConflict(w, err.Error())
	case ErrOwnerCannotLeave, ErrInvitationExpired, ErrInvitationResolved:
		httputil.WriteBadRequest(w, err.Error())
	default:
		if coded, ok := orgac.AsError(err); ok {
			httputil.WriteErrorMessage(w, coded.Status, coded.Message)
			return
		}
		httputil.WriteInternalError(w, err)
	}
}

func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return sess, true
}

// requirePermission loads the caller's membership and checks one permission
// in the organization.
func (h *Handlers) requirePermission(w http.ResponseWriter, r *http.Request, organizationID, userID int64, resource, action string) bool {
	member, err := h.gate.Member(r.Context(), organizationID, userID)
	if err != nil {
		writeOrgError(w, err)
		return false
	}
	allowed, err := h.gate.HasPermission(r.Context(), organizationID, member.Role, accesscontrol.Statements{
		resource: {action},
	})
	if err != nil {
		writeOrgError(w, err)
		return false
	}
	if !allowed {
		httputil.WriteForbidden(w, "insufficient permissions")
		return false
	}
	return true
}

// CreateOrganization creates an organization owned by the caller
func (h *Handlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var input CreateOrganizationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), sess.UserID, &input)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// ListOrganizations lists the caller's organizations
func (h *Handlers) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	organizations, err := h.service.ListOrganizations(r.Context(), sess.UserID)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	if organizations == nil {
		organizations = []*Organization{}
	}
	httputil.WriteSuccess(w, organizations)
}

// GetOrganization retrieves one organization the caller belongs to
func (h *Handlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.gate.Member(r.Context(), id, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}

	org, err := h.service.GetOrganization(r.Context(), id)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// UpdateOrganization applies a partial update
func (h *Handlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, id, sess.UserID, "organization", "update") {
		return
	}

	var input UpdateOrganizationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	org, err := h.service.UpdateOrganization(r.Context(), id, sess.UserID, &input)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// DeleteOrganization deletes an organization and all of its data
func (h *Handlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, id, sess.UserID, "organization", "delete") {
		return
	}

	if err := h.service.DeleteOrganization(r.Context(), id, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListMembers lists an organization's members
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.gate.Member(r.Context(), id, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}

	members, err := h.service.ListMembers(r.Context(), id)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	if members == nil {
		members = []*Member{}
	}
	httputil.WriteSuccess(w, members)
}

// UpdateMemberRole replaces a member's role string
func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, id, sess.UserID, "member", "update") {
		return
	}

	var input struct {
		Role string `json:"role" validate:"required"`
	}
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	if err := h.service.UpdateMemberRole(r.Context(), id, userID, input.Role, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteSuccessMessage(w, "member role updated", nil)
}

// RemoveMember removes a member. Members may remove themselves; removing
// anyone else requires member:delete.
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if userID != sess.UserID {
		if !h.requirePermission(w, r, id, sess.UserID, "member", "delete") {
			return
		}
	} else if _, err := h.gate.Member(r.Context(), id, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}

	if err := h.service.RemoveMember(r.Context(), id, userID, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateInvitation invites a user by email
func (h *Handlers) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, id, sess.UserID, "invitation", "create") {
		return
	}

	var input InviteMemberInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	invitation, err := h.service.CreateInvitation(r.Context(), id, sess.UserID, &input)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteCreated(w, invitation)
}

// ListInvitations lists an organization's pending invitations
func (h *Handlers) ListInvitations(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.gate.Member(r.Context(), id, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}

	invitations, err := h.service.ListInvitations(r.Context(), id)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	if invitations == nil {
		invitations = []*Invitation{}
	}
	httputil.WriteSuccess(w, invitations)
}

// CancelInvitation withdraws a pending invitation
func (h *Handlers) CancelInvitation(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	invitationID, ok := httputil.ParsePathInt64OrError(w, r, "invitationId")
	if !ok {
		return
	}
	if !h.requirePermission(w, r, id, sess.UserID, "invitation", "cancel") {
		return
	}

	if err := h.service.CancelInvitation(r.Context(), invitationID, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AcceptInvitation joins the caller to the inviting organization
func (h *Handlers) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	member, err := h.service.AcceptInvitation(r.Context(), token, sess.UserID)
	if err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

// RejectInvitation declines an invitation
func (h *Handlers) RejectInvitation(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	if err := h.service.RejectInvitation(r.Context(), token, sess.UserID); err != nil {
		writeOrgError(w, err)
		return
	}
	httputil.WriteSuccessMessage(w, "invitation rejected", nil)
}
