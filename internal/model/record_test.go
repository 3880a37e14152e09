package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeValue(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		want     string
		quantity int
	}{
		{name: "whole price", price: "5.00", quantity: 10, want: "50"},
		{name: "cents do not drift", price: "0.10", quantity: 3, want: "0.3"},
		{name: "free item", price: "0", quantity: 9999, want: "0"},
		{name: "max quantity", price: "19.99", quantity: 9999, want: "199880.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeValue(decimal.RequireFromString(tt.price), tt.quantity)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNewTransactionRecord(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	completed := created.Add(2 * time.Hour)

	item := &CatalogItem{ID: "item-x", Name: "X", UnitPrice: decimal.RequireFromString("5.00")}
	acct := &Account{ID: "acct-a", Class: ClassExternal}
	req := NewQueueRequest("req-1", item, 10, acct, created)

	rec := NewTransactionRecord("rec-1", &req, item, completed)

	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "item-x", rec.CatalogItemID)
	assert.Equal(t, "acct-a", rec.AccountID)
	assert.Equal(t, ClassExternal, rec.AccountClass)
	assert.Equal(t, 10, rec.Quantity)
	assert.Equal(t, created, rec.RequestedAt)
	assert.Equal(t, completed, rec.CompletedAt)
	assert.True(t, rec.Value.Equal(decimal.NewFromInt(50)))

	// later price edits do not reach an existing record
	item.UnitPrice = decimal.NewFromInt(7)
	assert.True(t, rec.Value.Equal(decimal.NewFromInt(50)))
}

func TestNewQueueRequest(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	item := &CatalogItem{ID: "item-x"}
	acct := &Account{ID: "acct-a", Class: ClassInternal}

	req := NewQueueRequest("req-1", item, 3, acct, at)

	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, ClassInternal, req.AccountClass)
	assert.Equal(t, at, req.CreatedAt)
	assert.Equal(t, at, req.UpdatedAt)
	assert.True(t, req.IsActive())
}
