package orgac

import (
	"context"
	"sync"

	"github.com/platware/orgauth/pkg/accesscontrol"
)

// StatementCache holds each organization's merged custom statements.
// Entries have no TTL: every write path through the registries calls
// Invalidate, so a cached entry is valid until the next mutation.
//
// Versions guard against a stale load racing an invalidation: a loader
// reads Version before hitting the database and passes it back to Put,
// which rejects the entry if an Invalidate happened in between.
type StatementCache interface {
	Get(ctx context.Context, organizationID int64) (accesscontrol.Statements, bool)
	Put(ctx context.Context, organizationID int64, statements accesscontrol.Statements, version uint64) bool
	Version(ctx context.Context, organizationID int64) uint64
	Invalidate(ctx context.Context, organizationID int64) error
	Clear(ctx context.Context) error
}

type cacheEntry struct {
	statements accesscontrol.Statements
	version    uint64
}

// MemoryStatementCache is the default in-process StatementCache.
type MemoryStatementCache struct {
	mu       sync.RWMutex
	entries  map[int64]cacheEntry
	versions map[int64]uint64
}

// NewMemoryStatementCache creates an empty in-process cache.
func NewMemoryStatementCache() *MemoryStatementCache {
	return &MemoryStatementCache{
		entries:  make(map[int64]cacheEntry),
		versions: make(map[int64]uint64),
	}
}

// Get returns the cached statements for an organization, if present.
func (c *MemoryStatementCache) Get(_ context.Context, organizationID int64) (accesscontrol.Statements, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[organizationID]
	if !ok {
		return nil, false
	}
	return entry.statements, true
}

// Put stores statements loaded at the given version. It returns false and
// stores nothing if the organization was invalidated since that version.
func (c *MemoryStatementCache) Put(_ context.Context, organizationID int64, statements accesscontrol.Statements, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[organizationID] != version {
		return false
	}
	c.entries[organizationID] = cacheEntry{statements: statements, version: version}
	return true
}

// Version returns the organization's current invalidation counter.
func (c *MemoryStatementCache) Version(_ context.Context, organizationID int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[organizationID]
}

// Invalidate drops the organization's entry and bumps its version.
func (c *MemoryStatementCache) Invalidate(_ context.Context, organizationID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, organizationID)
	c.versions[organizationID]++
	return nil
}

// Clear drops all entries and bumps every known version.
func (c *MemoryStatementCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		delete(c.entries, id)
	}
	for id := range c.versions {
		c.versions[id]++
	}
	return nil
}
