package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/testutil"
)

// fixture files five requests:
//
//	completed: ward-a 20 paracetamol (2.00), then clinic-b 2 bandage (7.00)
//	pending:   ward-a 4 ibuprofen
//	preparing: clinic-b 5 paracetamol
//	cancelled: ward-a 1 bandage
type fixture struct {
	db        *testutil.TestDB
	svc       *query.Service
	completed [2]*model.QueueRequest
	pending   *model.QueueRequest
	preparing *model.QueueRequest
	cancelled *model.QueueRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.NewBuilder().WithStandardFixture())
	clock := testutil.NewFakeClock(testutil.Epoch)
	engine := queue.NewEngine(db.Storage,
		queue.WithClock(clock.Ticking(time.Minute)),
		queue.WithIDGenerator(testutil.SequentialIDs("q")))

	enqueue := func(item string, qty int, account string) *model.QueueRequest {
		req, err := engine.Enqueue(ctx, item, qty, account)
		require.NoError(t, err)
		return req
	}
	complete := func(req *model.QueueRequest) {
		_, err := engine.Advance(ctx, req.ID, model.StatusPreparing)
		require.NoError(t, err)
		_, err = engine.Advance(ctx, req.ID, model.StatusReady)
		require.NoError(t, err)
		_, err = engine.Complete(ctx, req.ID)
		require.NoError(t, err)
	}

	f := &fixture{db: db, svc: query.New(db.Storage)}
	f.completed[0] = enqueue("paracetamol", 20, "ward-a")
	f.completed[1] = enqueue("bandage", 2, "clinic-b")
	f.pending = enqueue("ibuprofen", 4, "ward-a")
	f.preparing = enqueue("paracetamol", 5, "clinic-b")
	f.cancelled = enqueue("bandage", 1, "ward-a")

	complete(f.completed[0])
	complete(f.completed[1])
	_, err := engine.Advance(ctx, f.preparing.ID, model.StatusPreparing)
	require.NoError(t, err)
	_, err = engine.Cancel(ctx, f.cancelled.ID)
	require.NoError(t, err)

	return f
}

func requestIDs(rows []query.RequestRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func historyRequestIDs(rows []query.HistoryRow) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.RequestID
	}
	return ids
}

func TestActiveViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.ActiveAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.pending.ID, f.preparing.ID}, requestIDs(all))

	mine, err := f.svc.ActiveForAccount(ctx, "ward-a")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, f.pending.ID, mine[0].ID)
	assert.Equal(t, "Ibuprofen 200mg", mine[0].ItemName)
	assert.Equal(t, "Ward A", mine[0].AccountName)

	none, err := f.svc.ActiveForAccount(ctx, "admin")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPendingViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.PendingAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{f.pending.ID}, requestIDs(all))

	clinic, err := f.svc.PendingForAccount(ctx, "clinic-b")
	require.NoError(t, err)
	assert.Empty(t, clinic)
}

func TestHistory_DefaultOrderIsMostRecentFirst(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.HistoryAll(context.Background(), query.HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[1].ID, f.completed[0].ID}, historyRequestIDs(rows))
	assert.Equal(t, "Bandage roll", rows[0].ItemName)
	assert.Equal(t, "Clinic B", rows[0].AccountName)
	assert.True(t, decimal.RequireFromString("9.00").Equal(query.TotalValue(rows)))
}

func TestHistory_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{"item name", "PARA", []string{f.completed[0].ID}},
		{"account name", "clinic", []string{f.completed[1].ID}},
		{"value", "7.00", []string{f.completed[1].ID}},
		{"quantity", "20", []string{f.completed[0].ID}},
		{"no match", "morphine", []string{}},
		{"blank matches all", "   ", []string{f.completed[1].ID, f.completed[0].ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := f.svc.HistoryAll(ctx, query.HistoryOptions{Search: tt.search})
			require.NoError(t, err)
			assert.Equal(t, tt.want, historyRequestIDs(rows))
		})
	}
}

func TestHistory_FilterAndSort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	external, err := f.svc.HistoryAll(ctx, query.HistoryOptions{AccountClass: model.ClassExternal})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[1].ID}, historyRequestIDs(external))

	byValue, err := f.svc.HistoryAll(ctx, query.HistoryOptions{SortBy: query.SortValue, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[0].ID, f.completed[1].ID}, historyRequestIDs(byValue))

	byItem, err := f.svc.HistoryAll(ctx, query.HistoryOptions{SortBy: query.SortItem, Ascending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[1].ID, f.completed[0].ID}, historyRequestIDs(byItem))

	byQuantity, err := f.svc.HistoryAll(ctx, query.HistoryOptions{SortBy: query.SortQuantity})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[0].ID, f.completed[1].ID}, historyRequestIDs(byQuantity))

	mine, err := f.svc.HistoryForAccount(ctx, "ward-a", query.HistoryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{f.completed[0].ID}, historyRequestIDs(mine))
}

func TestHistory_InvalidOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.HistoryAll(ctx, query.HistoryOptions{AccountClass: "vip"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = f.svc.HistoryAll(ctx, query.HistoryOptions{SortBy: "colour"})
	assert.True(t, errors.Is(err, common.ErrValidation))

	since := testutil.Epoch.Add(time.Hour)
	until := testutil.Epoch
	_, err = f.svc.HistoryAll(ctx, query.HistoryOptions{Since: &since, Until: &until})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestHistory_SurvivesDeletedReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Storage.DeleteCatalogItem(ctx, "bandage"))

	rows, err := f.svc.HistoryAll(ctx, query.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].ItemName)
	assert.True(t, decimal.RequireFromString("7").Equal(rows[0].Value))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)

	sum, err := f.svc.Summary(context.Background(), "ward-a")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.ActiveTotal)
	assert.Equal(t, 1, sum.PendingTotal)
	assert.Equal(t, 1, sum.AccountActive)
	assert.Equal(t, 1, sum.AccountPending)
	assert.Equal(t, 2, sum.RecordCount)
	assert.Equal(t, 1, sum.AccountRecordCount)
	assert.True(t, decimal.RequireFromString("9").Equal(sum.LedgerTotal))
	assert.True(t, decimal.RequireFromString("2").Equal(sum.AccountLedgerTotal))

	global, err := f.svc.Summary(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, global.AccountActive)
	assert.True(t, global.AccountLedgerTotal.IsZero())
}

func TestAggregateValue(t *testing.T) {
	records := []model.TransactionRecord{
		{Value: decimal.RequireFromString("0.10")},
		{Value: decimal.RequireFromString("0.20")},
	}
	assert.True(t, decimal.RequireFromString("0.30").Equal(query.AggregateValue(records)))
	assert.True(t, query.AggregateValue(nil).IsZero())
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	page, current, pages := query.Paginate(items, 3, query.DefaultPageSize)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, current)
	assert.Equal(t, []int{20, 21, 22, 23, 24}, page)

	page, current, _ = query.Paginate(items, 0, 10)
	assert.Equal(t, 0, page[0])
	assert.Equal(t, 1, current)

	page, current, pages = query.Paginate(items, 99, 10)
	assert.Equal(t, 20, page[0])
	assert.Equal(t, 3, current, "the clamped page is reported")
	assert.Equal(t, 3, pages)

	page, current, pages = query.Paginate([]int{}, 4, 10)
	assert.Nil(t, page)
	assert.Equal(t, 1, current)
	assert.Zero(t, pages)
}

func TestParseSortField(t *testing.T) {
	f, err := query.ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, query.SortCompletedAt, f)

	f, err = query.ParseSortField(" Value ")
	require.NoError(t, err)
	assert.Equal(t, query.SortValue, f)

	_, err = query.ParseSortField("nope")
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Len(t, query.SortFields(), 6)
}

type failingStore struct {
	query.Store
}

func (failingStore) ListRequests(context.Context, service.RequestFilter) ([]model.QueueRequest, error) {
	return nil, common.NewStoreError("list requests", errors.New("disk gone"))
}

func TestActiveAll_StoreFailure(t *testing.T) {
	svc := query.New(failingStore{})
	_, err := svc.ActiveAll(context.Background())
	assert.True(t, errors.Is(err, common.ErrStore))
}
