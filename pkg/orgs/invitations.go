package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platware/orgauth/pkg/audit"
)

// CreateInvitation invites a user by email. Any pending invitation for the
// same email in the organization is superseded.
func (s *Service) CreateInvitation(ctx context.Context, organizationID, inviterID int64, input *InviteMemberInput) (*Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	_, err := s.db.ExecContext(ctx, `
		UPDATE org_invitations
		SET status = $1
		WHERE organization_id = $2 AND email = $3 AND status = $4
	`, InvitationCanceled, organizationID, email, InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede invitations: %w", err)
	}

	now := time.Now()
	invitation := &Invitation{
		OrganizationID: organizationID,
		Email:          email,
		Role:           input.Role,
		Status:         InvitationPending,
		Token:          uuid.NewString(),
		InviterID:      inviterID,
		ExpiresAt:      now.Add(s.invitationTTL),
		CreatedAt:      now,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO org_invitations (organization_id, email, role, status, token, inviter_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, invitation.OrganizationID, invitation.Email, invitation.Role, invitation.Status,
		invitation.Token, invitation.InviterID, invitation.ExpiresAt, invitation.CreatedAt,
	).Scan(&invitation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeInvitationCreate, &inviterID,
		audit.ResourceTypeInvitation, email, nil, "invitation created")

	return invitation, nil
}

// GetInvitation retrieves an invitation by token.
func (s *Service) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, status, token, inviter_id, expires_at, created_at
		FROM org_invitations
		WHERE token = $1
	`

	var invitation Invitation
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&invitation.ID,
		&invitation.OrganizationID,
		&invitation.Email,
		&invitation.Role,
		&invitation.Status,
		&invitation.Token,
		&invitation.InviterID,
		&invitation.ExpiresAt,
		&invitation.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return &invitation, nil
}

// ListInvitations lists an organization's pending invitations.
func (s *Service) ListInvitations(ctx context.Context, organizationID int64) ([]*Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, status, token, inviter_id, expires_at, created_at
		FROM org_invitations
		WHERE organization_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID, InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*Invitation
	for rows.Next() {
		var invitation Invitation
		err := rows.Scan(
			&invitation.ID,
			&invitation.OrganizationID,
			&invitation.Email,
			&invitation.Role,
			&invitation.Status,
			&invitation.Token,
			&invitation.InviterID,
			&invitation.ExpiresAt,
			&invitation.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, &invitation)
	}
	return invitations, rows.Err()
}

// AcceptInvitation turns a pending invitation into a membership carrying
// the invited role.
func (s *Service) AcceptInvitation(ctx context.Context, token string, userID int64) (*Member, error) {
	invitation, err := s.GetInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	if invitation.Status != InvitationPending {
		return nil, ErrInvitationResolved
	}
	if time.Now().After(invitation.ExpiresAt) {
		s.resolveInvitation(ctx, invitation.ID, InvitationExpired)
		return nil, ErrInvitationExpired
	}

	// Membership insert and invitation resolution commit together so a
	// failure cannot leave a member behind a still-pending invitation.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, invitation.OrganizationID, userID).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	member := &Member{
		OrganizationID: invitation.OrganizationID,
		UserID:         userID,
		Role:           invitation.Role,
		CreatedAt:      time.Now(),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, member.OrganizationID, member.UserID, member.Role, member.CreatedAt).Scan(&member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE org_invitations SET status = $1 WHERE id = $2 AND status = $3
	`, InvitationAccepted, invitation.ID, InvitationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve invitation: %w", err)
	}
	if affected == 0 {
		return nil, ErrInvitationResolved
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeOrgMemberAdd, &invitation.InviterID,
		audit.ResourceTypeMember, strconv.FormatInt(userID, 10), nil, "member added")
	s.audit.LogDataMutation(ctx, audit.EventTypeInvitationAccept, &userID,
		audit.ResourceTypeInvitation, invitation.Email, nil, "invitation accepted")

	return member, nil
}

// RejectInvitation marks a pending invitation as rejected by the invitee.
func (s *Service) RejectInvitation(ctx context.Context, token string, userID int64) error {
	invitation, err := s.GetInvitation(ctx, token)
	if err != nil {
		return err
	}
	if invitation.Status != InvitationPending {
		return ErrInvitationResolved
	}

	if err := s.resolveInvitation(ctx, invitation.ID, InvitationRejected); err != nil {
		return err
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeInvitationReject, &userID,
		audit.ResourceTypeInvitation, invitation.Email, nil, "invitation rejected")

	return nil
}

// CancelInvitation withdraws a pending invitation from the inviting side.
func (s *Service) CancelInvitation(ctx context.Context, invitationID int64, canceledBy int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE org_invitations
		SET status = $1
		WHERE id = $2 AND status = $3
	`, InvitationCanceled, invitationID, InvitationPending)
	if err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	if affected == 0 {
		return ErrInvitationNotFound
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeInvitationCancel, &canceledBy,
		audit.ResourceTypeInvitation, fmt.Sprintf("%d", invitationID), nil, "invitation canceled")

	return nil
}

func (s *Service) resolveInvitation(ctx context.Context, invitationID int64, status InvitationStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE org_invitations SET status = $1 WHERE id = $2
	`, status, invitationID)
	if err != nil {
		return fmt.Errorf("failed to resolve invitation: %w", err)
	}
	return nil
}

// CleanupExpiredInvitations marks pending invitations past their expiry.
// Returns the number of invitations expired.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE org_invitations
		SET status = $1
		WHERE status = $2 AND expires_at < $3
	`, InvitationExpired, InvitationPending, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	return result.RowsAffected()
}
