// Package queue implements the fulfillment state machine: requests move
// pending → preparing → ready → completed, or to cancelled from any
// non-terminal status, and completion atomically writes one ledger record.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// Store is the persistence the engine needs. InsertRequest checks the catalog
// item and account itself, so the engine never reads them through a cache.
type Store interface {
	service.QueueStore
}

// Engine owns every status change of every request.
type Engine struct {
	store       Store
	observer    Observer
	locks       *keyLock
	now         func() time.Time
	newID       func() string
	maxQuantity int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides identifier generation for requests and records.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithMaxQuantity sets the largest quantity one request may ask for.
func WithMaxQuantity(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxQuantity = n
		}
	}
}

// WithObserver registers an observer. Repeated use adds observers.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o == nil {
			return
		}
		if existing, ok := e.observer.(Observers); ok {
			e.observer = append(existing, o)
			return
		}
		if _, ok := e.observer.(NopObserver); ok {
			e.observer = o
			return
		}
		e.observer = Observers{e.observer, o}
	}
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		observer:    NopObserver{},
		locks:       newKeyLock(),
		now:         time.Now,
		newID:       uuid.NewString,
		maxQuantity: model.DefaultMaxQuantity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxQuantity returns the configured per-request quantity ceiling.
func (e *Engine) MaxQuantity() int {
	return e.maxQuantity
}

// Enqueue files a pending request for quantity units of a catalog item.
// Unknown items or accounts are reported as validation errors wrapping the
// not-found cause.
func (e *Engine) Enqueue(ctx context.Context, catalogItemID string, quantity int, accountID string) (*model.QueueRequest, error) {
	req, err := e.enqueue(ctx, catalogItemID, quantity, accountID)
	if err != nil {
		e.observer.OperationFailed("enqueue", err)
		return nil, err
	}
	e.observer.RequestEnqueued(*req)
	return req, nil
}

func (e *Engine) enqueue(ctx context.Context, catalogItemID string, quantity int, accountID string) (*model.QueueRequest, error) {
	switch {
	case strings.TrimSpace(catalogItemID) == "":
		return nil, common.NewValidationError("catalog_item_id", "missing")
	case strings.TrimSpace(accountID) == "":
		return nil, common.NewValidationError("account_id", "missing")
	case quantity <= 0:
		return nil, common.NewValidationError("quantity", "must be positive")
	case quantity > e.maxQuantity:
		return nil, common.NewValidationError("quantity", fmt.Sprintf("must not exceed %d", e.maxQuantity))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	req := model.QueueRequest{
		ID:            e.newID(),
		CatalogItemID: catalogItemID,
		Quantity:      quantity,
		AccountID:     accountID,
		Status:        model.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.store.InsertRequest(context.WithoutCancel(ctx), &req); err != nil {
		return nil, referenceError(err)
	}
	return &req, nil
}

// referenceError turns a missing catalog item or account into a validation
// error on the field that named it.
func referenceError(err error) error {
	var nf *common.NotFoundError
	if !errors.As(err, &nf) {
		return err
	}
	switch nf.Kind {
	case "catalog item":
		return &common.ValidationError{Field: "catalog_item_id", Reason: "unknown catalog item", Err: err}
	case "account":
		return &common.ValidationError{Field: "account_id", Reason: "unknown account", Err: err}
	}
	return err
}

// Advance moves a request to target, which must be a direct successor of its
// current status. Advancing to completed runs the completion protocol.
func (e *Engine) Advance(ctx context.Context, requestID string, target model.Status) (*model.QueueRequest, error) {
	req, err := e.advance(ctx, requestID, target)
	if err != nil {
		e.observer.OperationFailed("advance", err)
		return nil, err
	}
	return req, nil
}

// Step moves a request one edge along pending → preparing → ready → completed.
func (e *Engine) Step(ctx context.Context, requestID string) (*model.QueueRequest, error) {
	if err := validateID(requestID); err != nil {
		e.observer.OperationFailed("step", err)
		return nil, err
	}

	current, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		e.observer.OperationFailed("step", err)
		return nil, err
	}

	next, ok := current.Status.Next()
	if !ok {
		err := &common.InvalidTransitionError{RequestID: requestID, From: current.Status, To: current.Status}
		e.observer.OperationFailed("step", err)
		return nil, err
	}

	// The status is re-checked under the lock, so a concurrent step that got
	// there first makes this one fail rather than skip ahead.
	req, err := e.advance(ctx, requestID, next)
	if err != nil {
		e.observer.OperationFailed("step", err)
		return nil, err
	}
	return req, nil
}

// Cancel moves a non-terminal request to cancelled. No ledger record is written.
func (e *Engine) Cancel(ctx context.Context, requestID string) (*model.QueueRequest, error) {
	req, err := e.advance(ctx, requestID, model.StatusCancelled)
	if err != nil {
		e.observer.OperationFailed("cancel", err)
		return nil, err
	}
	return req, nil
}

// Complete moves a ready request to completed and returns its ledger record.
func (e *Engine) Complete(ctx context.Context, requestID string) (*model.TransactionRecord, error) {
	if err := validateID(requestID); err != nil {
		e.observer.OperationFailed("complete", err)
		return nil, err
	}

	unlock, err := e.locks.lock(ctx, requestID)
	if err != nil {
		e.observer.OperationFailed("complete", err)
		return nil, err
	}
	defer unlock()

	current, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		e.observer.OperationFailed("complete", err)
		return nil, err
	}

	_, record, err := e.completeLocked(ctx, current)
	if err != nil {
		e.observer.OperationFailed("complete", err)
		return nil, err
	}
	return record, nil
}

func (e *Engine) advance(ctx context.Context, requestID string, target model.Status) (*model.QueueRequest, error) {
	if err := validateID(requestID); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, common.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}

	unlock, err := e.locks.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if target == model.StatusCompleted {
		req, _, err := e.completeLocked(ctx, current)
		return req, err
	}

	if !current.Status.CanTransitionTo(target) {
		return nil, &common.InvalidTransitionError{RequestID: requestID, From: current.Status, To: target}
	}

	from := current.Status
	at := e.now().UTC()
	// Once accepted, the write is not abandoned because the caller went away.
	if err := e.store.TransitionRequest(context.WithoutCancel(ctx), requestID, from, target, at); err != nil {
		return nil, err
	}

	current.Status = target
	current.UpdatedAt = at
	e.observer.RequestTransitioned(*current, from)
	return current, nil
}

// completeLocked runs the completion protocol. The caller holds the request lock.
func (e *Engine) completeLocked(ctx context.Context, current *model.QueueRequest) (*model.QueueRequest, *model.TransactionRecord, error) {
	if current.Status != model.StatusReady {
		return nil, nil, &common.InvalidTransitionError{
			RequestID: current.ID,
			From:      current.Status,
			To:        model.StatusCompleted,
		}
	}

	record, err := e.store.CompleteRequest(context.WithoutCancel(ctx), current.ID, e.newID(), e.now().UTC())
	if err != nil {
		return nil, nil, err
	}

	current.Status = model.StatusCompleted
	current.UpdatedAt = record.CompletedAt
	e.observer.RequestTransitioned(*current, model.StatusReady)
	e.observer.RequestCompleted(*current, *record)
	return current, record, nil
}

func validateID(requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return common.NewValidationError("request_id", "missing")
	}
	return nil
}
