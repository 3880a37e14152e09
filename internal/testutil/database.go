// Package testutil provides shared fixtures for tests: a migrated in-memory
// store seeded through a fluent builder, a controllable clock, and
// deterministic identifiers.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
)

// TestDB is a migrated store plus the fixtures seeded into it.
type TestDB struct {
	Storage *storage.SQLiteStorage
	// Path is the database file, empty for in-memory databases.
	Path     string
	t        *testing.T
	Items    map[string]model.CatalogItem
	Accounts map[string]model.Account
}

// SetupTestDB creates a new in-memory test database seeded with fixture.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.NewBuilder().
//		WithItem("X", "5.00").
//		WithAccount("A", model.ClassExternal))
func SetupTestDB(t *testing.T, fixture *Builder) *TestDB {
	t.Helper()
	return setupTestDB(t, ":memory:", fixture)
}

// SetupFileTestDB is SetupTestDB backed by a temporary file, for tests that
// open a second handle on the same database.
func SetupFileTestDB(t *testing.T, fixture *Builder) *TestDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	db := setupTestDB(t, path, fixture)
	db.Path = path
	return db
}

func setupTestDB(t *testing.T, path string, fixture *Builder) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage:  store,
		t:        t,
		Items:    make(map[string]model.CatalogItem),
		Accounts: make(map[string]model.Account),
	}

	if fixture == nil {
		return db
	}

	for _, item := range fixture.items {
		if err := store.CreateCatalogItem(ctx, &item); err != nil {
			t.Fatalf("failed to seed catalog item %q: %v", item.ID, err)
		}
		db.Items[item.ID] = item
	}
	for _, account := range fixture.accounts {
		if err := store.CreateAccount(ctx, &account); err != nil {
			t.Fatalf("failed to seed account %q: %v", account.ID, err)
		}
		db.Accounts[account.ID] = account
	}

	return db
}

// MustItem returns a seeded catalog item or fails the test.
func (db *TestDB) MustItem(id string) model.CatalogItem {
	db.t.Helper()
	item, ok := db.Items[id]
	if !ok {
		db.t.Fatalf("catalog item %q was not seeded", id)
	}
	return item
}

// MustAccount returns a seeded account or fails the test.
func (db *TestDB) MustAccount(id string) model.Account {
	db.t.Helper()
	account, ok := db.Accounts[id]
	if !ok {
		db.t.Fatalf("account %q was not seeded", id)
	}
	return account
}
