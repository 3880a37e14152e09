package queue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
	"github.com/Veraticus/the-queue-must-flow/internal/testutil"
)

type harness struct {
	db     *testutil.TestDB
	engine *queue.Engine
	clock  *testutil.FakeClock
	events *recorder
}

func newHarness(t *testing.T, opts ...queue.Option) *harness {
	t.Helper()
	return newHarnessOn(t, testutil.SetupTestDB, opts...)
}

func newHarnessOn(t *testing.T, setup func(*testing.T, *testutil.Builder) *testutil.TestDB, opts ...queue.Option) *harness {
	t.Helper()
	db := setup(t, testutil.NewBuilder().
		WithItem("X", "5.00").
		WithItem("Y", "0.10").
		WithAccount("A", model.ClassExternal).
		WithAccount("B", model.ClassInternal))

	clock := testutil.NewFakeClock(testutil.Epoch)
	events := &recorder{}
	opts = append([]queue.Option{
		queue.WithClock(clock.Ticking(time.Second)),
		queue.WithIDGenerator(testutil.SequentialIDs("id")),
		queue.WithObserver(events),
	}, opts...)

	return &harness{
		db:     db,
		engine: queue.NewEngine(db.Storage, opts...),
		clock:  clock,
		events: events,
	}
}

func (h *harness) enqueue(t *testing.T, item string, qty int, account string) *model.QueueRequest {
	t.Helper()
	req, err := h.engine.Enqueue(context.Background(), item, qty, account)
	require.NoError(t, err)
	return req
}

func (h *harness) active(t *testing.T, accountID string) []model.QueueRequest {
	t.Helper()
	reqs, err := h.db.Storage.ListRequests(context.Background(), service.RequestFilter{
		AccountID: accountID,
		Statuses:  []model.Status{model.StatusPending, model.StatusPreparing, model.StatusReady},
	})
	require.NoError(t, err)
	return reqs
}

func (h *harness) records(t *testing.T, accountID string) []model.TransactionRecord {
	t.Helper()
	records, err := h.db.Storage.ListTransactionRecords(context.Background(), service.RecordFilter{AccountID: accountID})
	require.NoError(t, err)
	return records
}

func (h *harness) status(t *testing.T, id string) model.Status {
	t.Helper()
	req, err := h.db.Storage.GetRequest(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

func TestEngine_Enqueue(t *testing.T) {
	h := newHarness(t)

	req := h.enqueue(t, "X", 10, "A")
	assert.Equal(t, model.StatusPending, req.Status)
	assert.Equal(t, model.ClassExternal, req.AccountClass)
	assert.Equal(t, "X", req.CatalogItemID)
	assert.Equal(t, req.CreatedAt, req.UpdatedAt)

	active := h.active(t, "A")
	require.Len(t, active, 1)
	assert.Equal(t, req.ID, active[0].ID)

	pending, err := h.db.Storage.ListRequests(context.Background(), service.RequestFilter{
		Statuses: []model.Status{model.StatusPending},
	})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Len(t, h.events.enqueued, 1)
}

func TestEngine_EnqueueChecksReferencesInStore(t *testing.T) {
	h := newHarnessOn(t, testutil.SetupFileTestDB)
	ctx := context.Background()
	h.enqueue(t, "X", 1, "A")

	// Warm the read caches of the engine's store, then change the data
	// through a second handle on the same file.
	_, err := h.db.Storage.GetCatalogItem(ctx, "X")
	require.NoError(t, err)
	_, err = h.db.Storage.GetAccount(ctx, "A")
	require.NoError(t, err)

	other, err := storage.NewSQLiteStorage(h.db.Path)
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	account, err := other.GetAccount(ctx, "A")
	require.NoError(t, err)
	account.Class = model.ClassInternal
	require.NoError(t, other.UpdateAccount(ctx, account))

	req := h.enqueue(t, "X", 2, "A")
	assert.Equal(t, model.ClassInternal, req.AccountClass)

	require.NoError(t, other.DeleteCatalogItem(ctx, "X"))
	_, err = h.engine.Enqueue(ctx, "X", 1, "A")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorIs(t, err, common.ErrNotFound)
	var verr *common.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "catalog_item_id", verr.Field)

	assert.Len(t, h.active(t, "A"), 2)
}

func TestEngine_EnqueueValidation(t *testing.T) {
	h := newHarness(t, queue.WithMaxQuantity(100))
	ctx := context.Background()

	tests := []struct {
		name     string
		item     string
		account  string
		quantity int
		notFound bool
	}{
		{name: "zero quantity", item: "X", account: "A", quantity: 0},
		{name: "negative quantity", item: "X", account: "A", quantity: -3},
		{name: "over maximum", item: "X", account: "A", quantity: 101},
		{name: "missing item id", item: "", account: "A", quantity: 1},
		{name: "missing account id", item: "X", account: " ", quantity: 1},
		{name: "unknown item", item: "nope", account: "A", quantity: 1, notFound: true},
		{name: "unknown account", item: "X", account: "nobody", quantity: 1, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Enqueue(ctx, tt.item, tt.quantity, tt.account)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, tt.notFound, errors.Is(err, common.ErrNotFound))
		})
	}

	_, err := h.engine.Enqueue(ctx, "X", 100, "A")
	require.NoError(t, err, "the maximum itself is allowed")

	reqs, err := h.db.Storage.ListRequests(ctx, service.RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, reqs, 1, "failed enqueues must not write")
	assert.Len(t, h.events.failures, len(tests))
}

func TestEngine_DefaultMaxQuantity(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, model.DefaultMaxQuantity, h.engine.MaxQuantity())

	_, err := h.engine.Enqueue(context.Background(), "X", model.DefaultMaxQuantity+1, "A")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestEngine_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.enqueue(t, "X", 10, "A")

	got, err := h.engine.Advance(ctx, req.ID, model.StatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, got.Status)
	assert.True(t, got.UpdatedAt.After(req.CreatedAt))

	_, err = h.engine.Advance(ctx, req.ID, model.StatusReady)
	require.NoError(t, err)

	record, err := h.engine.Complete(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", record.Value.String())
	assert.Equal(t, req.ID, record.RequestID)
	assert.Equal(t, 10, record.Quantity)
	assert.Equal(t, "A", record.AccountID)
	assert.Equal(t, model.ClassExternal, record.AccountClass)
	assert.True(t, record.RequestedAt.Equal(req.CreatedAt))

	assert.Equal(t, model.StatusCompleted, h.status(t, req.ID))
	assert.Empty(t, h.active(t, "A"))

	history := h.records(t, "A")
	require.Len(t, history, 1)
	assert.Equal(t, "50", history[0].Value.String())

	assert.Len(t, h.events.completed, 1)
}

func TestEngine_AdvanceNonSuccessor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")

	for _, target := range []model.Status{model.StatusPending, model.StatusReady, model.StatusCompleted} {
		_, err := h.engine.Advance(ctx, req.ID, target)
		var ite *common.InvalidTransitionError
		require.True(t, errors.As(err, &ite), "target %s", target)
		assert.Equal(t, model.StatusPending, ite.From)
		assert.Equal(t, target, ite.To)
		assert.Equal(t, model.StatusPending, h.status(t, req.ID))
	}

	assert.Empty(t, h.records(t, "A"))
}

func TestEngine_AdvanceUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.Advance(ctx, "missing", model.StatusPreparing)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = h.engine.Complete(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	req := h.enqueue(t, "X", 1, "A")
	_, err = h.engine.Advance(ctx, req.ID, "shipped")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = h.engine.Advance(ctx, "", model.StatusPreparing)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestEngine_AdvanceToCompletedRunsProtocol(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "Y", 3, "B")

	for _, s := range []model.Status{model.StatusPreparing, model.StatusReady, model.StatusCompleted} {
		_, err := h.engine.Advance(ctx, req.ID, s)
		require.NoError(t, err)
	}

	records := h.records(t, "B")
	require.Len(t, records, 1)
	assert.Equal(t, "0.3", records[0].Value.String())
}

func TestEngine_Step(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 2, "A")

	want := []model.Status{model.StatusPreparing, model.StatusReady, model.StatusCompleted}
	for _, status := range want {
		got, err := h.engine.Step(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}

	_, err := h.engine.Step(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	assert.Len(t, h.records(t, "A"), 1)
}

func TestEngine_Cancel(t *testing.T) {
	for _, stopAt := range []model.Status{model.StatusPending, model.StatusPreparing, model.StatusReady} {
		t.Run(string(stopAt), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			req := h.enqueue(t, "X", 1, "A")

			for s := model.StatusPending; s != stopAt; {
				next, _ := s.Next()
				_, err := h.engine.Advance(ctx, req.ID, next)
				require.NoError(t, err)
				s = next
			}

			got, err := h.engine.Cancel(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusCancelled, got.Status)
			assert.Empty(t, h.active(t, "A"))
			assert.Empty(t, h.records(t, "A"))

			_, err = h.engine.Cancel(ctx, req.ID)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
			_, err = h.engine.Complete(ctx, req.ID)
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
		})
	}
}

func TestEngine_CompleteOnlyFromReady(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")

	_, err := h.engine.Complete(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	_, err = h.engine.Advance(ctx, req.ID, model.StatusPreparing)
	require.NoError(t, err)
	_, err = h.engine.Complete(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrInvalidTransition)

	assert.Equal(t, model.StatusPreparing, h.status(t, req.ID))
	assert.Empty(t, h.records(t, "A"))
}

func TestEngine_DanglingReference(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")

	_, err := h.engine.Advance(ctx, req.ID, model.StatusPreparing)
	require.NoError(t, err)
	_, err = h.engine.Advance(ctx, req.ID, model.StatusReady)
	require.NoError(t, err)

	require.NoError(t, h.db.Storage.DeleteCatalogItem(ctx, "X"))

	_, err = h.engine.Complete(ctx, req.ID)
	var dre *common.DanglingReferenceError
	require.True(t, errors.As(err, &dre))
	assert.Equal(t, req.ID, dre.RequestID)
	assert.Equal(t, "X", dre.CatalogItemID)

	assert.Equal(t, model.StatusReady, h.status(t, req.ID))
	assert.Empty(t, h.records(t, "A"))
	require.Len(t, h.active(t, "A"), 1)

	// An operator can still cancel it.
	_, err = h.engine.Cancel(ctx, req.ID)
	require.NoError(t, err)
}

func TestEngine_ValueIgnoresLaterPriceEdits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.enqueue(t, "X", 10, "A")
	for i := 0; i < 3; i++ {
		_, err := h.engine.Step(ctx, first.ID)
		require.NoError(t, err)
	}

	item := h.db.MustItem("X")
	item.UnitPrice = item.UnitPrice.Add(item.UnitPrice)
	require.NoError(t, h.db.Storage.UpdateCatalogItem(ctx, &item))

	second := h.enqueue(t, "X", 10, "A")
	for i := 0; i < 3; i++ {
		_, err := h.engine.Step(ctx, second.ID)
		require.NoError(t, err)
	}

	byRequest := map[string]string{}
	for _, r := range h.records(t, "A") {
		byRequest[r.RequestID] = r.Value.String()
	}
	assert.Equal(t, map[string]string{first.ID: "50", second.ID: "100"}, byRequest)
}

func TestEngine_ConcurrentAdvanceExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = h.engine.Advance(ctx, req.ID, model.StatusPreparing)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, common.ErrInvalidTransition)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, model.StatusPreparing, h.status(t, req.ID))
}

func TestEngine_ConcurrentCompleteWritesOneRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 4, "A")
	_, err := h.engine.Step(ctx, req.ID)
	require.NoError(t, err)
	_, err = h.engine.Step(ctx, req.ID)
	require.NoError(t, err)

	// A second engine over the same store has its own locks, so only the
	// store's compare-and-set protects it.
	other := queue.NewEngine(h.db.Storage)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			engine := h.engine
			if i%2 == 1 {
				engine = other
			}
			_, errs[i] = engine.Complete(ctx, req.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, common.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Len(t, h.records(t, "A"), 1)
}

func TestEngine_CancelledContextWhileWaiting(t *testing.T) {
	h := newHarness(t)
	req := h.enqueue(t, "X", 1, "A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Advance(ctx, req.ID, model.StatusPreparing)
	// Either the lock wait or the read observes the cancellation; nothing is written.
	require.Error(t, err)
	assert.Equal(t, model.StatusPending, h.status(t, req.ID))
}

type failingStore struct {
	queue.Store
	completeErr error
}

func (f *failingStore) CompleteRequest(ctx context.Context, id, recordID string, at time.Time) (*model.TransactionRecord, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return f.Store.CompleteRequest(ctx, id, recordID, at)
}

func TestEngine_StoreErrorsSurfaceUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")
	_, err := h.engine.Step(ctx, req.ID)
	require.NoError(t, err)
	_, err = h.engine.Step(ctx, req.ID)
	require.NoError(t, err)

	storeErr := common.NewStoreError("commit completion", errors.New("disk full"))
	engine := queue.NewEngine(&failingStore{Store: h.db.Storage, completeErr: storeErr})

	_, err = engine.Complete(ctx, req.ID)
	assert.ErrorIs(t, err, common.ErrStore)
	assert.Equal(t, model.StatusReady, h.status(t, req.ID))
}

// blockingStore parks CompleteRequest until release is closed.
type blockingStore struct {
	queue.Store
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) CompleteRequest(ctx context.Context, id, recordID string, at time.Time) (*model.TransactionRecord, error) {
	close(b.entered)
	<-b.release
	return b.Store.CompleteRequest(ctx, id, recordID, at)
}

func TestEngine_CompleteReportsLockTimeout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")
	for i := 0; i < 2; i++ {
		_, err := h.engine.Step(ctx, req.ID)
		require.NoError(t, err)
	}

	store := &blockingStore{Store: h.db.Storage, entered: make(chan struct{}), release: make(chan struct{})}
	events := &recorder{}
	engine := queue.NewEngine(store, queue.WithObserver(events))

	done := make(chan error, 1)
	go func() {
		_, err := engine.Complete(ctx, req.ID)
		done <- err
	}()
	<-store.entered

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := engine.Complete(waitCtx, req.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(store.release)
	require.NoError(t, <-done)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, []string{"complete"}, events.failures)
	assert.Len(t, events.completed, 1)
}

type recorder struct {
	enqueued    []model.QueueRequest
	transitions []model.Status
	completed   []model.TransactionRecord
	failures    []string
	mu          sync.Mutex
}

func (r *recorder) RequestEnqueued(req model.QueueRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, req)
}

func (r *recorder) RequestTransitioned(req model.QueueRequest, _ model.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, req.Status)
}

func (r *recorder) RequestCompleted(_ model.QueueRequest, record model.TransactionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, record)
}

func (r *recorder) OperationFailed(op string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, op)
}

func TestEngine_ObserverSeesTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.enqueue(t, "X", 1, "A")
	for i := 0; i < 3; i++ {
		_, err := h.engine.Step(ctx, req.ID)
		require.NoError(t, err)
	}

	assert.Equal(t, []model.Status{model.StatusPreparing, model.StatusReady, model.StatusCompleted}, h.events.transitions)
	assert.Len(t, h.events.completed, 1)
	assert.Empty(t, h.events.failures)
}
