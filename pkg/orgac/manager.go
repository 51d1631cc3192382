package orgac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gorilla/mux"

	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/observability"
)

// Manager wires the access-control subsystem together: store, statement
// cache, gate, registries, and HTTP handlers.
type Manager struct {
	config    Config
	store     Store
	cache     StatementCache
	loader    *StatementLoader
	gate      *Gate
	roles     *RoleRegistry
	resources *ResourceRegistry
	handlers  *Handlers
}

// ManagerOptions configures optional collaborators. Zero values select the
// in-process defaults.
type ManagerOptions struct {
	Cache       StatementCache
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	AuditLogger audit.Logger
}

// NewManager creates an access-control manager over a database handle.
func NewManager(db *sql.DB, config Config, opts ManagerOptions) (*Manager, error) {
	config = config.withDefaults()

	store := NewStore(db)
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryStatementCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	loader := NewStatementLoader(store, cache)
	gate, err := NewGate(config, store, loader, logger, opts.Metrics, opts.AuditLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate: %w", err)
	}

	roles := NewRoleRegistry(config, store, gate, logger, opts.AuditLogger)
	resources := NewResourceRegistry(config, store, loader, gate, logger, opts.AuditLogger)

	return &Manager{
		config:    config,
		store:     store,
		cache:     cache,
		loader:    loader,
		gate:      gate,
		roles:     roles,
		resources: resources,
		handlers:  NewHandlers(roles, resources, gate),
	}, nil
}

// Initialize runs the access-control migrations.
func (m *Manager) Initialize(ctx context.Context, db *sql.DB) error {
	return RunMigrations(ctx, db)
}

// RegisterRoutes registers the access-control HTTP routes.
func (m *Manager) RegisterRoutes(router *mux.Router) {
	m.handlers.RegisterRoutes(router)
}

// Gate returns the permission gate for in-process checks.
func (m *Manager) Gate() *Gate { return m.gate }

// Roles returns the role registry.
func (m *Manager) Roles() *RoleRegistry { return m.roles }

// Resources returns the resource registry.
func (m *Manager) Resources() *ResourceRegistry { return m.resources }

// Store returns the underlying store.
func (m *Manager) Store() Store { return m.store }

// InvalidateOrganization drops every cached artifact for an organization:
// its statement cache entry and its resolved custom roles. Called when the
// organization is deleted.
func (m *Manager) InvalidateOrganization(ctx context.Context, organizationID int64) error {
	m.gate.InvalidateOrganizationRoles(organizationID)
	return m.cache.Invalidate(ctx, organizationID)
}

// CleanupOrganization deletes an organization's roles and resources and
// drops its cached artifacts. Called when the organization is deleted.
func (m *Manager) CleanupOrganization(ctx context.Context, organizationID int64) error {
	if err := m.store.DeleteOrganizationData(ctx, organizationID); err != nil {
		return err
	}
	return m.InvalidateOrganization(ctx, organizationID)
}
