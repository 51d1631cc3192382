package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/observability"
)

// AccessControlCleaner removes an organization's access-control state when
// the organization is deleted. Satisfied by *orgac.Manager.
type AccessControlCleaner interface {
	CleanupOrganization(ctx context.Context, organizationID int64) error
}

// Service manages organizations, members, and invitations.
type Service struct {
	db          *sql.DB
	ac          AccessControlCleaner
	logger      *observability.Logger
	audit       audit.Logger
	creatorRole string

	invitationTTL time.Duration
}

// ServiceOptions configures optional collaborators.
type ServiceOptions struct {
	AccessControl AccessControlCleaner
	Logger        *observability.Logger
	AuditLogger   audit.Logger

	// CreatorRole is assigned to the organization's creator. Defaults to
	// "owner".
	CreatorRole string

	// InvitationTTL is how long invitations stay acceptable. Defaults to
	// 7 days.
	InvitationTTL time.Duration
}

// NewService creates an organization service.
func NewService(db *sql.DB, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	auditLogger := opts.AuditLogger
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	creatorRole := opts.CreatorRole
	if creatorRole == "" {
		creatorRole = "owner"
	}
	ttl := opts.InvitationTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{
		db:            db,
		ac:            opts.AccessControl,
		logger:        logger,
		audit:         auditLogger,
		creatorRole:   creatorRole,
		invitationTTL: ttl,
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9-]+`)

func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugPattern.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "org"
	}
	return slug
}

// CreateOrganization creates an organization and adds the creator as its
// first member with the creator role.
func (s *Service) CreateOrganization(ctx context.Context, creatorID int64, input *CreateOrganizationInput) (*Organization, error) {
	slug := input.Slug
	if slug == "" {
		slug = generateSlug(input.Name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM organizations WHERE slug = $1`, slug).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check slug: %w", err)
	}
	if exists > 0 {
		return nil, ErrSlugTaken
	}

	now := time.Now()
	org := &Organization{
		Name:      input.Name,
		Slug:      slug,
		Logo:      input.Logo,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (name, slug, logo, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, org.Name, org.Slug, org.Logo, org.Metadata, now, now).Scan(&org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, org.ID, creatorID, s.creatorRole, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"slug":            org.Slug,
	}).Info("organization created")
	s.audit.LogDataMutation(ctx, audit.EventTypeOrgCreate, &creatorID,
		audit.ResourceTypeOrganization, org.Slug, nil, "organization created")

	return org, nil
}

// GetOrganization retrieves an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	return s.getOrganization(ctx, `WHERE id = $1`, id)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	return s.getOrganization(ctx, `WHERE slug = $1`, slug)
}

func (s *Service) getOrganization(ctx context.Context, where string, arg interface{}) (*Organization, error) {
	query := `
		SELECT id, name, slug, logo, metadata, created_at, updated_at
		FROM organizations
	` + where

	var org Organization
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.Logo,
		&org.Metadata,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListOrganizations lists the organizations a user belongs to.
func (s *Service) ListOrganizations(ctx context.Context, userID int64) ([]*Organization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.logo, o.metadata, o.created_at, o.updated_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var organizations []*Organization
	for rows.Next() {
		var org Organization
		err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.Slug,
			&org.Logo,
			&org.Metadata,
			&org.CreatedAt,
			&org.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		organizations = append(organizations, &org)
	}
	return organizations, rows.Err()
}

// UpdateOrganization applies a partial update.
func (s *Service) UpdateOrganization(ctx context.Context, id int64, userID int64, input *UpdateOrganizationInput) (*Organization, error) {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		org.Name = *input.Name
	}
	if input.Slug != nil && *input.Slug != org.Slug {
		existing, err := s.GetOrganizationBySlug(ctx, *input.Slug)
		if err == nil && existing.ID != id {
			return nil, ErrSlugTaken
		}
		if err != nil && err != ErrOrganizationNotFound {
			return nil, err
		}
		org.Slug = *input.Slug
	}
	if input.Logo != nil {
		org.Logo = *input.Logo
	}
	if input.Metadata != nil {
		org.Metadata = *input.Metadata
	}

	org.UpdatedAt = time.Now()
	_, err = s.db.ExecContext(ctx, `
		UPDATE organizations
		SET name = $1, slug = $2, logo = $3, metadata = $4, updated_at = $5
		WHERE id = $6
	`, org.Name, org.Slug, org.Logo, org.Metadata, org.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.audit.LogDataMutation(ctx, audit.EventTypeOrgUpdate, &userID,
		audit.ResourceTypeOrganization, org.Slug, nil, "organization updated")

	return org, nil
}

// DeleteOrganization removes an organization with all of its members,
// invitations, custom roles, and custom resources, and drops its cached
// access-control state.
func (s *Service) DeleteOrganization(ctx context.Context, id int64, userID int64) error {
	org, err := s.GetOrganization(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM org_invitations WHERE organization_id = $1`,
		`DELETE FROM organization_members WHERE organization_id = $1`,
		`DELETE FROM organizations WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete organization: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.ac != nil {
		if err := s.ac.CleanupOrganization(ctx, id); err != nil {
			return err
		}
	}

	s.logger.WithField("organization_id", id).Info("organization deleted")
	s.audit.LogDataMutation(ctx, audit.EventTypeOrgDelete, &userID,
		audit.ResourceTypeOrganization, org.Slug, nil, "organization deleted")

	return nil
}
