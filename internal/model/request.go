package model

import "time"

// DefaultMaxQuantity is the largest quantity a single request may ask for.
const DefaultMaxQuantity = 9999

// QueueRequest is one in-flight fulfillment request for a catalog item by an account.
// Only Status and UpdatedAt change after creation.
type QueueRequest struct {
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ID            string
	CatalogItemID string
	AccountID     string
	Status        Status
	AccountClass  AccountClass // snapshot taken at creation
	Quantity      int
}

// NewQueueRequest builds a pending request for item filed by account at the given time.
func NewQueueRequest(id string, item *CatalogItem, quantity int, account *Account, at time.Time) QueueRequest {
	return QueueRequest{
		ID:            id,
		CatalogItemID: item.ID,
		Quantity:      quantity,
		AccountID:     account.ID,
		Status:        StatusPending,
		AccountClass:  account.Class,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// IsActive reports whether the request still appears in active views.
func (r *QueueRequest) IsActive() bool {
	return r.Status.IsActive()
}
