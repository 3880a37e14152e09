package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is the immutable ledger entry written when a request completes.
type TransactionRecord struct {
	RequestedAt   time.Time // creation time of the source request
	CompletedAt   time.Time
	Value         decimal.Decimal
	ID            string
	RequestID     string
	CatalogItemID string
	AccountID     string
	AccountClass  AccountClass
	Quantity      int
}

// ComputeValue multiplies a unit price by a quantity without rounding.
func ComputeValue(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// NewTransactionRecord materializes the ledger entry for req priced from item.
// The value is fixed at completion time and never follows later price edits.
func NewTransactionRecord(id string, req *QueueRequest, item *CatalogItem, completedAt time.Time) TransactionRecord {
	return TransactionRecord{
		ID:            id,
		RequestID:     req.ID,
		CatalogItemID: req.CatalogItemID,
		Quantity:      req.Quantity,
		Value:         ComputeValue(item.UnitPrice, req.Quantity),
		AccountID:     req.AccountID,
		AccountClass:  req.AccountClass,
		RequestedAt:   req.CreatedAt,
		CompletedAt:   completedAt,
	}
}
