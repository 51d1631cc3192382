package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/platware/orgauth/pkg/audit"
)

// ListMembers lists an organization's members.
func (s *Service) ListMembers(ctx context.Context, organizationID int64) ([]*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var member Member
		err := rows.Scan(
			&member.ID,
			&member.OrganizationID,
			&member.UserID,
			&member.Role,
			&member.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, &member)
	}
	return members, rows.Err()
}

// GetMember retrieves one membership.
func (s *Service) GetMember(ctx context.Context, organizationID, userID int64) (*Member, error) {
	query := `
		SELECT id, organization_id, user_id, role, created_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`

	var member Member
	err := s.db.QueryRowContext(ctx, query, organizationID, userID).Scan(
		&member.ID,
		&member.OrganizationID,
		&member.UserID,
		&member.Role,
		&member.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return &member, nil
}

// AddMember adds a user to an organization with the given role string.
func (s *Service) AddMember(ctx context.Context, organizationID, userID int64, role string, addedBy int64) (*Member, error) {
	if _, err := s.GetMember(ctx, organizationID, userID); err == nil {
		return nil, ErrAlreadyMember
	} else if err != ErrMemberNotFound {
		return nil, err
	}

	member := &Member{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		CreatedAt:      time.Now(),
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, organizationID, userID, role, member.CreatedAt).Scan(&member.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeOrgMemberAdd, &addedBy,
		audit.ResourceTypeMember, strconv.FormatInt(userID, 10), nil, "member added")

	return member, nil
}

// UpdateMemberRole replaces a member's role string.
func (s *Service) UpdateMemberRole(ctx context.Context, organizationID, userID int64, role string, updatedBy int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE organization_members
		SET role = $1
		WHERE organization_id = $2 AND user_id = $3
	`, role, organizationID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	if affected == 0 {
		return ErrMemberNotFound
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeOrgMemberRoleChange, &updatedBy,
		audit.ResourceTypeMember, strconv.FormatInt(userID, 10), nil, "member role changed")

	return nil
}

// RemoveMember removes a user from an organization. A member whose role is
// exactly the creator role cannot be removed; ownership must be transferred
// first.
func (s *Service) RemoveMember(ctx context.Context, organizationID, userID int64, removedBy int64) error {
	member, err := s.GetMember(ctx, organizationID, userID)
	if err != nil {
		return err
	}
	if member.Role == s.creatorRole {
		return ErrOwnerCannotLeave
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, organizationID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeOrgMemberRemove, &removedBy,
		audit.ResourceTypeMember, strconv.FormatInt(userID, 10), nil, "member removed")

	return nil
}
