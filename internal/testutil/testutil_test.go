package testutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/testutil"
)

func TestSetupTestDB_SeedsFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.NewBuilder().WithStandardFixture())
	ctx := context.Background()

	items, err := db.Storage.ListCatalogItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	admin, err := db.Storage.GetAccount(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	assert.Equal(t, model.ClassExternal, db.MustAccount("clinic-b").Class)
	assert.Equal(t, "0.25", db.MustItem("ibuprofen").UnitPrice.String())
}

func TestSetupTestDB_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t, nil)
	count, err := db.Storage.CountAccounts(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFakeClock(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	assert.Equal(t, testutil.Epoch, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, testutil.Epoch.Add(time.Hour), clock.Now())

	tick := clock.Ticking(time.Second)
	assert.Equal(t, testutil.Epoch.Add(time.Hour+time.Second), tick())
	assert.Equal(t, testutil.Epoch.Add(time.Hour+2*time.Second), tick())
}

func TestSequentialIDs(t *testing.T) {
	next := testutil.SequentialIDs("req")
	assert.Equal(t, "req-1", next())
	assert.Equal(t, "req-2", next())
}
