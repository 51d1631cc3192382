package orgac

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// countingStore wraps a Store and counts ListResources calls.
type countingStore struct {
	Store
	listCalls atomic.Int32
}

func (s *countingStore) ListResources(ctx context.Context, organizationID int64) ([]Resource, error) {
	s.listCalls.Add(1)
	return s.Store.ListResources(ctx, organizationID)
}

func TestLoader_BuildsStatementsFromResources(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	for _, fixture := range []Resource{
		{OrganizationID: 1, Resource: "project", Permissions: []string{"create", "share"}},
		{OrganizationID: 1, Resource: "document", Permissions: []string{"read"}},
	} {
		resource := fixture
		if err := store.CreateResource(ctx, &resource); err != nil {
			t.Fatal(err)
		}
	}

	loader := NewStatementLoader(store, NewMemoryStatementCache())
	statements, err := loader.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !statements.Grants("project", "share") {
		t.Error("expected project:share")
	}
	if !statements.Grants("document", "read") {
		t.Error("expected document:read")
	}
	if statements.Grants("project", "delete") {
		t.Error("unexpected project:delete")
	}
}

func TestLoader_CachesAcrossLoads(t *testing.T) {
	db := setupTestDB(t)
	store := &countingStore{Store: NewStore(db)}
	loader := NewStatementLoader(store, NewMemoryStatementCache())
	ctx := context.Background()

	if _, err := loader.Load(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Load(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if calls := store.listCalls.Load(); calls != 1 {
		t.Errorf("ListResources calls = %d, want 1", calls)
	}
}

func TestLoader_InvalidateForcesReload(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	loader := NewStatementLoader(store, NewMemoryStatementCache())
	ctx := context.Background()

	statements, err := loader.Load(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(statements) != 0 {
		t.Fatalf("expected no custom statements, got %v", statements)
	}

	resource := &Resource{OrganizationID: 1, Resource: "project", Permissions: []string{"create"}}
	if err := store.CreateResource(ctx, resource); err != nil {
		t.Fatal(err)
	}
	if err := loader.Invalidate(ctx, 1); err != nil {
		t.Fatal(err)
	}

	statements, err = loader.Load(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !statements.Grants("project", "create") {
		t.Error("reload after Invalidate must see the new resource")
	}
}

func TestLoader_ConcurrentLoadsCollapse(t *testing.T) {
	db := setupTestDB(t)
	store := &countingStore{Store: NewStore(db)}
	loader := NewStatementLoader(store, NewMemoryStatementCache())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := loader.Load(ctx, 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	// Concurrent loads for one organization share a single flight. The
	// exact count depends on scheduling but must be far below the number
	// of callers.
	if calls := store.listCalls.Load(); calls > 4 {
		t.Errorf("ListResources calls = %d, want few", calls)
	}
}
