package orgac

import (
	"context"
	"database/sql"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/platware/orgauth/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Every pool connection to :memory: gets its own database, so pin
	// the pool to one connection to keep the schema visible everywhere.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE organization_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			permission TEXT NOT NULL DEFAULT '{}',
			additional_fields TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(organization_id, role)
		);

		CREATE TABLE organization_resources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			resource TEXT NOT NULL,
			permissions TEXT NOT NULL DEFAULT '[]',
			additional_fields TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(organization_id, resource)
		);

		CREATE TABLE organization_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			organization_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(organization_id, user_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

func addTestMember(t *testing.T, db *sql.DB, organizationID, userID int64, role string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO organization_members (organization_id, user_id, role) VALUES ($1, $2, $3)`,
		organizationID, userID, role,
	)
	if err != nil {
		t.Fatalf("Failed to add test member: %v", err)
	}
}

func testObsLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// testEnv wires a store, loader, gate, and both registries over a sqlite
// database with the default configuration.
type testEnv struct {
	db        *sql.DB
	store     *SQLStore
	cache     *MemoryStatementCache
	loader    *StatementLoader
	gate      *Gate
	roles     *RoleRegistry
	resources *ResourceRegistry
}

func setupTestEnv(t *testing.T, config Config) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	store := NewStore(db)
	cache := NewMemoryStatementCache()
	loader := NewStatementLoader(store, cache)

	gate, err := NewGate(config, store, loader, testObsLogger(), nil, nil)
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}

	return &testEnv{
		db:        db,
		store:     store,
		cache:     cache,
		loader:    loader,
		gate:      gate,
		roles:     NewRoleRegistry(config, store, gate, testObsLogger(), nil),
		resources: NewResourceRegistry(config, store, loader, gate, testObsLogger(), nil),
	}
}

func mustCreateResource(t *testing.T, env *testEnv, organizationID, userID int64, name string, permissions []string) *Resource {
	t.Helper()
	resource, err := env.resources.Create(context.Background(), organizationID, userID, &CreateResourceInput{
		Resource:    name,
		Permissions: permissions,
	})
	if err != nil {
		t.Fatalf("Create resource %q failed: %v", name, err)
	}
	return resource
}
