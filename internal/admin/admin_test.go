package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/testutil"
)

var (
	adminActor = service.Actor{AccountID: "admin", Access: model.AccessAdmin}
	userActor  = service.Actor{AccountID: "ward-a", Access: model.AccessUser}
)

func setup(t *testing.T) (*testutil.TestDB, *admin.Service) {
	t.Helper()
	db := testutil.SetupTestDB(t, testutil.NewBuilder().WithStandardFixture())
	clock := testutil.NewFakeClock(testutil.Epoch)
	svc := admin.New(db.Storage,
		admin.WithClock(clock.Now),
		admin.WithIDGenerator(testutil.SequentialIDs("item")),
		admin.WithHashCost(bcrypt.MinCost))
	return db, svc
}

func storedAccount(t *testing.T, db *testutil.TestDB, id string) *model.Account {
	t.Helper()
	account, err := db.Storage.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return account
}

func ptr[T any](v T) *T { return &v }

func TestNonAdminIsForbidden(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userActor, admin.ItemInput{Name: "Gauze", UnitPrice: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	_, err = svc.UpdateItem(ctx, userActor, "bandage", admin.ItemPatch{Name: ptr("x")})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	assert.True(t, errors.Is(svc.DeleteItem(ctx, userActor, "bandage"), common.ErrForbidden))

	_, err = svc.AddAccount(ctx, userActor, admin.AccountInput{ID: "x"})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	_, err = svc.UpdateAccount(ctx, userActor, "clinic-b", admin.AccountPatch{})
	assert.True(t, errors.Is(err, common.ErrForbidden))

	assert.True(t, errors.Is(svc.DeleteAccount(ctx, userActor, "clinic-b"), common.ErrForbidden))

	_, err = svc.ResetCredential(ctx, userActor, "clinic-b")
	assert.True(t, errors.Is(err, common.ErrForbidden))

	err = svc.ChangeCredential(ctx, userActor, "clinic-b", "", "new-credential")
	assert.True(t, errors.Is(err, common.ErrForbidden))
}

func TestAddAndUpdateItem(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, adminActor, admin.ItemInput{
		Name:      "  Gauze swab ",
		UnitPrice: decimal.RequireFromString("0.45"),
	})
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "Gauze swab", item.Name)
	assert.Equal(t, testutil.Epoch, item.CreatedAt)

	updated, err := svc.UpdateItem(ctx, adminActor, item.ID, admin.ItemPatch{
		UnitPrice: ptr(decimal.RequireFromString("0.50")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Gauze swab", updated.Name)

	stored, err := db.Storage.GetCatalogItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.50").Equal(stored.UnitPrice))
}

func TestAddItem_RejectsNegativePrice(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.AddItem(context.Background(), adminActor, admin.ItemInput{
		ID:        "refund",
		Name:      "Refund",
		UnitPrice: decimal.RequireFromString("-1"),
	})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestUpdateItem_DoesNotRepriceLedger(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	engine := queue.NewEngine(db.Storage)

	req, err := engine.Enqueue(ctx, "bandage", 2, "ward-a")
	require.NoError(t, err)
	for _, s := range []model.Status{model.StatusPreparing, model.StatusReady} {
		_, err = engine.Advance(ctx, req.ID, s)
		require.NoError(t, err)
	}
	record, err := engine.Complete(ctx, req.ID)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, adminActor, "bandage", admin.ItemPatch{UnitPrice: ptr(decimal.NewFromInt(100))})
	require.NoError(t, err)

	stored, err := db.Storage.GetRecordByRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, record.Value.Equal(stored.Value))
	assert.True(t, decimal.RequireFromString("7").Equal(stored.Value))
}

func TestDeleteItem(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.DeleteItem(ctx, adminActor, "bandage"))
	_, err := db.Storage.GetCatalogItem(ctx, "bandage")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assert.True(t, errors.Is(svc.DeleteItem(ctx, adminActor, "bandage"), common.ErrNotFound))
}

func TestAddAccount(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	account, err := svc.AddAccount(ctx, adminActor, admin.AccountInput{
		ID:          "pharmacy",
		DisplayName: "Pharmacy",
		Credential:  "initial-secret",
		Class:       model.ClassInternal,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AccessUser, account.Access)
	assert.True(t, account.MustChangeCredential)
	assert.NotEqual(t, "initial-secret", account.CredentialHash)

	stored := storedAccount(t, db, "pharmacy")
	ok, err := admin.CheckCredential(stored.CredentialHash, "initial-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.AddAccount(ctx, adminActor, admin.AccountInput{
		ID: "short", DisplayName: "Short", Credential: "abc", Class: model.ClassInternal,
	})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestUpdateAccount(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	account, err := svc.UpdateAccount(ctx, adminActor, "clinic-b", admin.AccountPatch{
		DisplayName: ptr("Clinic Bravo"),
		Class:       ptr(model.ClassInternal),
	})
	require.NoError(t, err)
	assert.Equal(t, "Clinic Bravo", account.DisplayName)
	assert.Equal(t, model.ClassInternal, account.Class)

	_, err = svc.UpdateAccount(ctx, adminActor, "admin", admin.AccountPatch{Access: ptr(model.AccessUser)})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = svc.UpdateAccount(ctx, adminActor, "ghost", admin.AccountPatch{})
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestUpdateAccount_KeepsRequestClassSnapshot(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	engine := queue.NewEngine(db.Storage)

	req, err := engine.Enqueue(ctx, "paracetamol", 1, "clinic-b")
	require.NoError(t, err)

	_, err = svc.UpdateAccount(ctx, adminActor, "clinic-b", admin.AccountPatch{Class: ptr(model.ClassInternal)})
	require.NoError(t, err)

	stored, err := db.Storage.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClassExternal, stored.AccountClass)
}

func TestDeleteAccount(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	assert.True(t, errors.Is(svc.DeleteAccount(ctx, adminActor, "admin"), common.ErrValidation))
	require.NoError(t, svc.DeleteAccount(ctx, adminActor, "clinic-b"))
	assert.True(t, errors.Is(svc.DeleteAccount(ctx, adminActor, "clinic-b"), common.ErrNotFound))
}

func TestResetAndChangeCredential(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	temp, err := svc.ResetCredential(ctx, adminActor, "ward-a")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(temp), admin.MinCredentialLength)
	assert.True(t, storedAccount(t, db, "ward-a").MustChangeCredential)

	err = svc.ChangeCredential(ctx, userActor, "ward-a", "wrong-temp", "brand-new-secret")
	assert.True(t, errors.Is(err, common.ErrValidation))

	require.NoError(t, svc.ChangeCredential(ctx, userActor, "ward-a", temp, "brand-new-secret"))
	account := storedAccount(t, db, "ward-a")
	assert.False(t, account.MustChangeCredential)
	ok, err := admin.CheckCredential(account.CredentialHash, "brand-new-secret")
	require.NoError(t, err)
	assert.True(t, ok)

	// Admins skip the current-credential check.
	require.NoError(t, svc.ChangeCredential(ctx, adminActor, "ward-a", "", "admin-chosen-secret"))
}

func TestBootstrap(t *testing.T) {
	db := testutil.SetupTestDB(t, nil)
	svc := admin.New(db.Storage, admin.WithHashCost(bcrypt.MinCost))
	ctx := context.Background()

	first, err := svc.Bootstrap(ctx, admin.AccountInput{
		ID: "root", DisplayName: "Root", Credential: "correct-horse",
	})
	require.NoError(t, err)
	assert.True(t, first.IsAdmin())
	assert.Equal(t, model.ClassInternal, first.Class)
	assert.False(t, first.MustChangeCredential)

	_, err = svc.Bootstrap(ctx, admin.AccountInput{
		ID: "second", DisplayName: "Second", Credential: "correct-horse",
	})
	assert.True(t, errors.Is(err, common.ErrForbidden))
}

func TestCheckCredential(t *testing.T) {
	hash, err := admin.HashCredential("long-enough", bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := admin.CheckCredential(hash, "long-enough")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admin.CheckCredential(hash, "not-it-at-all")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = admin.CheckCredential("", "long-enough")
	assert.Error(t, err)
}
