package orgs

import (
	"errors"
	"time"
)

// InvitationStatus tracks an invitation through its lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
	InvitationCanceled InvitationStatus = "canceled"
	InvitationExpired  InvitationStatus = "expired"
)

// Organization is a tenant. Every member, invitation, custom role, and
// custom resource hangs off one organization.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Logo      string    `json:"logo,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Member is a user's membership in an organization. Role may hold several
// comma-joined role names.
type Member struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organizationId"`
	UserID         int64     `json:"userId"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Invitation is a pending offer to join an organization.
type Invitation struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organizationId"`
	Email          string           `json:"email"`
	Role           string           `json:"role"`
	Status         InvitationStatus `json:"status"`
	Token          string           `json:"-"`
	InviterID      int64            `json:"inviterId"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// CreateOrganizationInput is the payload for creating an organization.
type CreateOrganizationInput struct {
	Name     string `json:"name" validate:"required,min=1,max=255"`
	Slug     string `json:"slug,omitempty" validate:"omitempty,max=255"`
	Logo     string `json:"logo,omitempty"`
	Metadata string `json:"metadata,omitempty"`
}

// UpdateOrganizationInput is the payload for updating an organization.
// Nil fields are left unchanged.
type UpdateOrganizationInput struct {
	Name     *string `json:"name,omitempty"`
	Slug     *string `json:"slug,omitempty"`
	Logo     *string `json:"logo,omitempty"`
	Metadata *string `json:"metadata,omitempty"`
}

// InviteMemberInput is the payload for inviting a user by email.
type InviteMemberInput struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrOwnerCannotLeave     = errors.New("the owner cannot leave the organization")
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvitationExpired    = errors.New("invitation has expired")
	ErrInvitationResolved   = errors.New("invitation is no longer pending")
	ErrSlugTaken            = errors.New("organization slug is already taken")
)
