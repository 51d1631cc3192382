package orgac

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/platware/orgauth/pkg/accesscontrol"
	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/observability"
)

// Gate answers permission checks for organization members. A member's role
// string may name several roles; the check passes if any one of them grants
// every requested permission.
//
// Resolved custom roles are kept in a bounded LRU keyed by organization and
// role name. Eviction only costs a database reload; correctness comes from
// explicit invalidation on role mutation.
type Gate struct {
	config    Config
	store     Store
	loader    *StatementLoader
	roleCache *lru.Cache[string, *accesscontrol.Role]
	logger    *observability.Logger
	metrics   *observability.Metrics
	audit     audit.Logger
}

// NewGate creates a permission gate.
func NewGate(config Config, store Store, loader *StatementLoader, logger *observability.Logger, metrics *observability.Metrics, auditLogger audit.Logger) (*Gate, error) {
	config = config.withDefaults()
	roleCache, err := lru.New[string, *accesscontrol.Role](config.CompiledRoleCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}
	return &Gate{
		config:    config,
		store:     store,
		loader:    loader,
		roleCache: roleCache,
		logger:    logger,
		metrics:   metrics,
		audit:     auditLogger,
	}, nil
}

func (g *Gate) dynamic() bool {
	return g.config.AC != nil
}

// SplitRoles splits a member's comma-joined role string into normalized
// role names.
func SplitRoles(role string) []string {
	parts := strings.Split(role, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func roleCacheKey(organizationID int64, name string) string {
	return fmt.Sprintf("%d:%s", organizationID, name)
}

// resolveRole finds the role behind a name: pre-defined roles first, then
// the organization's custom roles. Returns nil when the name is unknown.
func (g *Gate) resolveRole(ctx context.Context, organizationID int64, name string) (*accesscontrol.Role, error) {
	if role, ok := g.config.Roles[name]; ok {
		return role, nil
	}
	if !g.dynamic() || organizationID == 0 {
		return nil, nil
	}

	key := roleCacheKey(organizationID, name)
	if role, ok := g.roleCache.Get(key); ok {
		if g.metrics != nil {
			g.metrics.CacheHitsTotal.WithLabelValues("compiled_role", "role").Inc()
		}
		return role, nil
	}
	if g.metrics != nil {
		g.metrics.CacheMissesTotal.WithLabelValues("compiled_role", "role").Inc()
	}

	record, err := g.store.GetRole(ctx, organizationID, name)
	if err == ErrRoleNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	role := accesscontrol.NewRole(record.Permission)
	g.roleCache.Add(key, role)
	return role, nil
}

// HasPermission reports whether a member role string grants every requested
// permission. Unknown role names contribute nothing; an empty request passes
// if the member holds at least one resolvable role.
func (g *Gate) HasPermission(ctx context.Context, organizationID int64, memberRole string, requested accesscontrol.Statements) (bool, error) {
	allowed, err := g.hasPermission(ctx, organizationID, memberRole, requested)
	if err != nil {
		return false, err
	}
	if g.metrics != nil {
		g.metrics.PermissionChecksTotal.WithLabelValues(fmt.Sprintf("%t", allowed)).Inc()
	}
	if !allowed && g.audit != nil {
		g.audit.LogAuthorization(ctx, audit.EventTypeACAccessDenied, nil, &organizationID,
			audit.EventStatusDenied, fmt.Sprintf("permission denied for role %q", memberRole))
	}
	return allowed, nil
}

func (g *Gate) hasPermission(ctx context.Context, organizationID int64, memberRole string, requested accesscontrol.Statements) (bool, error) {
	for _, name := range SplitRoles(memberRole) {
		role, err := g.resolveRole(ctx, organizationID, name)
		if err != nil {
			return false, err
		}
		if role == nil {
			continue
		}
		if result := role.Authorize(requested); result.Success {
			return true, nil
		}
	}
	return false, nil
}

// RequireEachPermission checks each {resource: action} pair of the grants
// separately and fails on the first pair the member does not hold. Used to
// stop a member delegating permissions they do not have.
func (g *Gate) RequireEachPermission(ctx context.Context, organizationID int64, memberRole string, grants accesscontrol.Statements) error {
	for _, resource := range grants.Resources() {
		for _, action := range grants[resource] {
			allowed, err := g.HasPermission(ctx, organizationID, memberRole, accesscontrol.Statements{
				resource: {action},
			})
			if err != nil {
				return err
			}
			if !allowed {
				return Ef(CodeInvalidPermission,
					fmt.Sprintf("you cannot grant a permission you do not hold: %s:%s", resource, action))
			}
		}
	}
	return nil
}

// Statements returns the organization's effective statement set: the
// defaults with the organization's custom resources merged on top.
func (g *Gate) Statements(ctx context.Context, organizationID int64) (*accesscontrol.AccessControl, error) {
	if !g.dynamic() {
		return nil, E(CodeMissingACInstance)
	}
	if organizationID == 0 {
		return g.config.AC, nil
	}
	custom, err := g.loader.Load(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return g.config.AC.WithStatements(custom), nil
}

// InvalidateRole evicts one resolved custom role.
func (g *Gate) InvalidateRole(organizationID int64, name string) {
	g.roleCache.Remove(roleCacheKey(organizationID, name))
}

// InvalidateOrganizationRoles evicts every resolved role for an organization.
func (g *Gate) InvalidateOrganizationRoles(organizationID int64) {
	prefix := fmt.Sprintf("%d:", organizationID)
	for _, key := range g.roleCache.Keys() {
		if strings.HasPrefix(key, prefix) {
			g.roleCache.Remove(key)
		}
	}
}

// Member loads a user's membership, translating a missing row into the
// coded not-a-member error.
func (g *Gate) Member(ctx context.Context, organizationID, userID int64) (*Member, error) {
	member, err := g.store.GetMember(ctx, organizationID, userID)
	if err == ErrMemberNotFound {
		return nil, E(CodeNotAMemberOfOrganization)
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}
