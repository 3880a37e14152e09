package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_VersionsAreSequential(t *testing.T) {
	for i, migration := range migrations {
		assert.Equal(t, i+1, migration.Version, "migration %q", migration.Description)
		assert.NotEmpty(t, migration.Description)
	}
	assert.Equal(t, ExpectedSchemaVersion, migrations[len(migrations)-1].Version)
}

func TestMigrate_UniqueRecordPerRequest(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	insert := `INSERT INTO transaction_records
		(id, request_id, catalog_item_id, quantity, value, account_id, account_class, requested_at, completed_at)
		VALUES (?, 'r1', 'x', 1, '1', 'A', 'internal', ?, ?)`

	_, err := store.db.ExecContext(ctx, insert, "rec1", baseTime, baseTime)
	require.NoError(t, err)

	_, err = store.db.ExecContext(ctx, insert, "rec2", baseTime, baseTime)
	assert.Error(t, err, "a second record for the same request must be rejected")
}

func TestMigrate_RejectsUnknownStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.db.ExecContext(context.Background(), `INSERT INTO queue_requests
		(id, catalog_item_id, quantity, account_id, status, account_class, created_at, updated_at)
		VALUES ('r1', 'x', 1, 'A', 'shipped', 'internal', ?, ?)`, baseTime, baseTime)
	assert.Error(t, err)
}
