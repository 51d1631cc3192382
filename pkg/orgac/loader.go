package orgac

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/platware/orgauth/pkg/accesscontrol"
)

// StatementLoader resolves an organization's custom statements, caching them
// and collapsing concurrent loads for the same organization into one query.
type StatementLoader struct {
	store Store
	cache StatementCache
	group singleflight.Group
}

// NewStatementLoader creates a loader over a store and a statement cache.
func NewStatementLoader(store Store, cache StatementCache) *StatementLoader {
	return &StatementLoader{store: store, cache: cache}
}

// Load returns the organization's custom statements, reading through the
// cache. The returned map must not be mutated by callers.
func (l *StatementLoader) Load(ctx context.Context, organizationID int64) (accesscontrol.Statements, error) {
	if statements, ok := l.cache.Get(ctx, organizationID); ok {
		return statements, nil
	}

	key := strconv.FormatInt(organizationID, 10)
	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: another caller may have filled it.
		if statements, ok := l.cache.Get(ctx, organizationID); ok {
			return statements, nil
		}

		version := l.cache.Version(ctx, organizationID)
		resources, err := l.store.ListResources(ctx, organizationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load custom statements: %w", err)
		}

		statements := make(accesscontrol.Statements, len(resources))
		for _, resource := range resources {
			statements[resource.Resource] = append([]string(nil), resource.Permissions...)
		}

		// A concurrent Invalidate makes this a no-op; the next Load re-reads.
		l.cache.Put(ctx, organizationID, statements, version)
		return statements, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(accesscontrol.Statements), nil
}

// Invalidate drops the organization's cached statements.
func (l *StatementLoader) Invalidate(ctx context.Context, organizationID int64) error {
	return l.cache.Invalidate(ctx, organizationID)
}
