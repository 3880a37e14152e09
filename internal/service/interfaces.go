// Package service defines the persistence contracts shared by the queue engine,
// the query layer and the administrative operations.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// RequestFilter narrows request listings. Zero values match everything.
type RequestFilter struct {
	AccountID    string
	AccountClass model.AccountClass
	Statuses     []model.Status
	Limit        int
	Offset       int
}

// RecordFilter narrows ledger listings. Zero values match everything.
type RecordFilter struct {
	Since        *time.Time
	Until        *time.Time
	AccountID    string
	AccountClass model.AccountClass
	Limit        int
	Offset       int
}

// CatalogStore persists catalog items.
type CatalogStore interface {
	CreateCatalogItem(ctx context.Context, item *model.CatalogItem) error
	GetCatalogItem(ctx context.Context, id string) (*model.CatalogItem, error)
	ListCatalogItems(ctx context.Context) ([]model.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item *model.CatalogItem) error
	DeleteCatalogItem(ctx context.Context, id string) error
}

// AccountStore persists accounts.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	CountAccounts(ctx context.Context) (int, error)
	UpdateAccount(ctx context.Context, account *model.Account) error
	DeleteAccount(ctx context.Context, id string) error
}

// QueueStore persists queue requests and performs their status writes.
type QueueStore interface {
	// InsertRequest stores a pending request after checking, in the same
	// write, that its catalog item and account exist. The account's stored
	// class is copied onto req. A missing reference yields
	// common.NotFoundError naming it and nothing is written.
	InsertRequest(ctx context.Context, req *model.QueueRequest) error
	GetRequest(ctx context.Context, id string) (*model.QueueRequest, error)
	// ListRequests returns matching requests in creation-ascending order.
	ListRequests(ctx context.Context, filter RequestFilter) ([]model.QueueRequest, error)
	// TransitionRequest moves a request from one status to another only if it
	// is still in from. A request found in any other status yields
	// common.InvalidTransitionError carrying the status actually stored.
	TransitionRequest(ctx context.Context, id string, from, to model.Status, at time.Time) error
	// CompleteRequest atomically moves a ready request to completed and appends
	// its ledger record. On any error nothing is written.
	CompleteRequest(ctx context.Context, id, recordID string, at time.Time) (*model.TransactionRecord, error)
}

// Ledger reads the append-only transaction records.
type Ledger interface {
	// ListTransactionRecords returns matching records, most recently completed first.
	ListTransactionRecords(ctx context.Context, filter RecordFilter) ([]model.TransactionRecord, error)
	GetRecordByRequest(ctx context.Context, requestID string) (*model.TransactionRecord, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	CatalogStore
	AccountStore
	QueueStore
	Ledger

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Actor is the authenticated caller, supplied by the authentication collaborator.
// The core trusts it and performs no credential check.
type Actor struct {
	AccountID string
	Access    model.AccessClass
}

// IsAdmin reports whether the actor may perform administrative operations.
func (a Actor) IsAdmin() bool {
	return a.Access == model.AccessAdmin
}
