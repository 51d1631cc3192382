package orgac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Storage sentinels. Registries translate these into coded API errors.
var (
	ErrRoleNotFound     = errors.New("role not found")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMemberNotFound   = errors.New("member not found")
)

// Store defines the persistence surface the registries and the gate need.
type Store interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, organizationID int64, name string) (*Role, error)
	ListRoles(ctx context.Context, organizationID int64) ([]Role, error)
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, organizationID int64, name string) error
	CountRoles(ctx context.Context, organizationID int64) (int, error)

	CreateResource(ctx context.Context, resource *Resource) error
	GetResource(ctx context.Context, organizationID int64, name string) (*Resource, error)
	ListResources(ctx context.Context, organizationID int64) ([]Resource, error)
	UpdateResource(ctx context.Context, resource *Resource) error
	DeleteResource(ctx context.Context, organizationID int64, name string) error
	CountResources(ctx context.Context, organizationID int64) (int, error)

	GetMember(ctx context.Context, organizationID, userID int64) (*Member, error)
	DeleteOrganizationData(ctx context.Context, organizationID int64) error
}

// SQLStore persists roles, resources, and memberships in a *sql.DB.
type SQLStore struct {
	db *sql.DB
}

// NewStore creates a SQL-backed store.
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// CreateRole inserts a custom role row.
func (s *SQLStore) CreateRole(ctx context.Context, role *Role) error {
	permission, err := encodeStatements(role.Permission)
	if err != nil {
		return err
	}
	fields, err := encodeAdditionalFields(role.AdditionalFields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO organization_roles (organization_id, role, permission, additional_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		role.OrganizationID,
		role.Role,
		permission,
		fields,
		now,
		now,
	).Scan(&role.ID)

	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves one custom role by name within an organization.
func (s *SQLStore) GetRole(ctx context.Context, organizationID int64, name string) (*Role, error) {
	query := `
		SELECT id, organization_id, role, permission, additional_fields, created_at, updated_at
		FROM organization_roles
		WHERE organization_id = $1 AND role = $2
	`

	var role Role
	var permission, fields string

	err := s.db.QueryRowContext(ctx, query, organizationID, name).Scan(
		&role.ID,
		&role.OrganizationID,
		&role.Role,
		&permission,
		&fields,
		&role.CreatedAt,
		&role.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if role.Permission, err = decodeStatements(permission); err != nil {
		return nil, err
	}
	if role.AdditionalFields, err = decodeAdditionalFields(fields); err != nil {
		return nil, err
	}

	return &role, nil
}

// ListRoles lists an organization's custom roles ordered by name.
func (s *SQLStore) ListRoles(ctx context.Context, organizationID int64) ([]Role, error) {
	query := `
		SELECT id, organization_id, role, permission, additional_fields, created_at, updated_at
		FROM organization_roles
		WHERE organization_id = $1
		ORDER BY role ASC
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		var permission, fields string

		err := rows.Scan(
			&role.ID,
			&role.OrganizationID,
			&role.Role,
			&permission,
			&fields,
			&role.CreatedAt,
			&role.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}

		if role.Permission, err = decodeStatements(permission); err != nil {
			return nil, err
		}
		if role.AdditionalFields, err = decodeAdditionalFields(fields); err != nil {
			return nil, err
		}

		roles = append(roles, role)
	}

	return roles, rows.Err()
}

// UpdateRole rewrites a role row by ID, including a possible rename.
func (s *SQLStore) UpdateRole(ctx context.Context, role *Role) error {
	permission, err := encodeStatements(role.Permission)
	if err != nil {
		return err
	}
	fields, err := encodeAdditionalFields(role.AdditionalFields)
	if err != nil {
		return err
	}

	query := `
		UPDATE organization_roles
		SET role = $1, permission = $2, additional_fields = $3, updated_at = $4
		WHERE id = $5
	`

	role.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		role.Role,
		permission,
		fields,
		role.UpdatedAt,
		role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes one custom role by name.
func (s *SQLStore) DeleteRole(ctx context.Context, organizationID int64, name string) error {
	query := `DELETE FROM organization_roles WHERE organization_id = $1 AND role = $2`
	result, err := s.db.ExecContext(ctx, query, organizationID, name)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if affected == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// CountRoles counts an organization's custom roles.
func (s *SQLStore) CountRoles(ctx context.Context, organizationID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM organization_roles WHERE organization_id = $1`
	if err := s.db.QueryRowContext(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// CreateResource inserts a custom resource row.
func (s *SQLStore) CreateResource(ctx context.Context, resource *Resource) error {
	permissions, err := encodePermissions(resource.Permissions)
	if err != nil {
		return err
	}
	fields, err := encodeAdditionalFields(resource.AdditionalFields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO organization_resources (organization_id, resource, permissions, additional_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	now := time.Now()
	err = s.db.QueryRowContext(ctx, query,
		resource.OrganizationID,
		resource.Resource,
		permissions,
		fields,
		now,
		now,
	).Scan(&resource.ID)

	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	resource.CreatedAt = now
	resource.UpdatedAt = now
	return nil
}

// GetResource retrieves one custom resource by name within an organization.
func (s *SQLStore) GetResource(ctx context.Context, organizationID int64, name string) (*Resource, error) {
	query := `
		SELECT id, organization_id, resource, permissions, additional_fields, created_at, updated_at
		FROM organization_resources
		WHERE organization_id = $1 AND resource = $2
	`

	var resource Resource
	var permissions, fields string

	err := s.db.QueryRowContext(ctx, query, organizationID, name).Scan(
		&resource.ID,
		&resource.OrganizationID,
		&resource.Resource,
		&permissions,
		&fields,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrResourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	if resource.Permissions, err = decodePermissions(permissions); err != nil {
		return nil, err
	}
	if resource.AdditionalFields, err = decodeAdditionalFields(fields); err != nil {
		return nil, err
	}

	return &resource, nil
}

// ListResources lists an organization's custom resources ordered by name.
func (s *SQLStore) ListResources(ctx context.Context, organizationID int64) ([]Resource, error) {
	query := `
		SELECT id, organization_id, resource, permissions, additional_fields, created_at, updated_at
		FROM organization_resources
		WHERE organization_id = $1
		ORDER BY resource ASC
	`

	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var resource Resource
		var permissions, fields string

		err := rows.Scan(
			&resource.ID,
			&resource.OrganizationID,
			&resource.Resource,
			&permissions,
			&fields,
			&resource.CreatedAt,
			&resource.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}

		if resource.Permissions, err = decodePermissions(permissions); err != nil {
			return nil, err
		}
		if resource.AdditionalFields, err = decodeAdditionalFields(fields); err != nil {
			return nil, err
		}

		resources = append(resources, resource)
	}

	return resources, rows.Err()
}

// UpdateResource rewrites a resource's permissions and additional fields.
func (s *SQLStore) UpdateResource(ctx context.Context, resource *Resource) error {
	permissions, err := encodePermissions(resource.Permissions)
	if err != nil {
		return err
	}
	fields, err := encodeAdditionalFields(resource.AdditionalFields)
	if err != nil {
		return err
	}

	query := `
		UPDATE organization_resources
		SET permissions = $1, additional_fields = $2, updated_at = $3
		WHERE id = $4
	`

	resource.UpdatedAt = time.Now()
	result, err := s.db.ExecContext(ctx, query,
		permissions,
		fields,
		resource.UpdatedAt,
		resource.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if affected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// DeleteResource removes one custom resource by name.
func (s *SQLStore) DeleteResource(ctx context.Context, organizationID int64, name string) error {
	query := `DELETE FROM organization_resources WHERE organization_id = $1 AND resource = $2`
	result, err := s.db.ExecContext(ctx, query, organizationID, name)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	if affected == 0 {
		return ErrResourceNotFound
	}
	return nil
}

// CountResources counts an organization's custom resources.
func (s *SQLStore) CountResources(ctx context.Context, organizationID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM organization_resources WHERE organization_id = $1`
	if err := s.db.QueryRowContext(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return count, nil
}

// GetMember retrieves a user's membership in an organization.
func (s *SQLStore) GetMember(ctx context.Context, organizationID, userID int64) (*Member, error) {
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

// DeleteOrganizationData removes all roles and resources belonging to an
// organization. Used when the organization itself is deleted.
func (s *SQLStore) DeleteOrganizationData(ctx context.Context, organizationID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_roles WHERE organization_id = $1`, organizationID); err != nil {
		return fmt.Errorf("failed to delete organization roles: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM organization_resources WHERE organization_id = $1`, organizationID); err != nil {
		return fmt.Errorf("failed to delete organization resources: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
