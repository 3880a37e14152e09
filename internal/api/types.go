package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

type requestJSON struct {
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	ID            string    `json:"id"`
	CatalogItemID string    `json:"catalog_item_id"`
	ItemName      string    `json:"item_name,omitempty"`
	AccountID     string    `json:"account_id"`
	AccountName   string    `json:"account_name,omitempty"`
	Status        string    `json:"status"`
	AccountClass  string    `json:"account_class"`
	Quantity      int       `json:"quantity"`
}

func newRequestJSON(req model.QueueRequest) requestJSON {
	return requestJSON{
		ID:            req.ID,
		CatalogItemID: req.CatalogItemID,
		AccountID:     req.AccountID,
		Status:        string(req.Status),
		AccountClass:  string(req.AccountClass),
		Quantity:      req.Quantity,
		CreatedAt:     req.CreatedAt,
		UpdatedAt:     req.UpdatedAt,
	}
}

func newRequestRowJSON(row query.RequestRow) requestJSON {
	out := newRequestJSON(row.QueueRequest)
	out.ItemName = row.ItemName
	out.AccountName = row.AccountName
	return out
}

type recordJSON struct {
	RequestedAt   time.Time       `json:"requested_at"`
	CompletedAt   time.Time       `json:"completed_at"`
	Value         decimal.Decimal `json:"value"`
	ID            string          `json:"id"`
	RequestID     string          `json:"request_id"`
	CatalogItemID string          `json:"catalog_item_id"`
	ItemName      string          `json:"item_name,omitempty"`
	AccountID     string          `json:"account_id"`
	AccountName   string          `json:"account_name,omitempty"`
	AccountClass  string          `json:"account_class"`
	Quantity      int             `json:"quantity"`
}

func newRecordJSON(r model.TransactionRecord) recordJSON {
	return recordJSON{
		ID:            r.ID,
		RequestID:     r.RequestID,
		CatalogItemID: r.CatalogItemID,
		AccountID:     r.AccountID,
		AccountClass:  string(r.AccountClass),
		Quantity:      r.Quantity,
		Value:         r.Value,
		RequestedAt:   r.RequestedAt,
		CompletedAt:   r.CompletedAt,
	}
}

func newHistoryRowJSON(row query.HistoryRow) recordJSON {
	out := newRecordJSON(row.TransactionRecord)
	out.ItemName = row.ItemName
	out.AccountName = row.AccountName
	return out
}

type itemJSON struct {
	CreatedAt   time.Time       `json:"created_at"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	ImageRef    string          `json:"image_ref,omitempty"`
}

func newItemJSON(item model.CatalogItem) itemJSON {
	return itemJSON{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		UnitPrice:   item.UnitPrice,
		ImageRef:    item.ImageRef,
		CreatedAt:   item.CreatedAt,
	}
}

// accountJSON never carries the credential hash.
type accountJSON struct {
	CreatedAt            time.Time `json:"created_at"`
	ID                   string    `json:"id"`
	DisplayName          string    `json:"display_name"`
	Class                string    `json:"account_class"`
	Access               string    `json:"access_class"`
	MustChangeCredential bool      `json:"must_change_credential"`
}

func newAccountJSON(a model.Account) accountJSON {
	return accountJSON{
		ID:                   a.ID,
		DisplayName:          a.DisplayName,
		Class:                string(a.Class),
		Access:               string(a.Access),
		MustChangeCredential: a.MustChangeCredential,
		CreatedAt:            a.CreatedAt,
	}
}

type page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Count int `json:"count"`
}

type historyPage struct {
	Total decimal.Decimal `json:"total"`
	page[recordJSON]
}

type summaryJSON struct {
	LedgerTotal        decimal.Decimal `json:"ledger_total"`
	AccountLedgerTotal decimal.Decimal `json:"account_ledger_total"`
	AccountID          string          `json:"account_id,omitempty"`
	PendingTotal       int             `json:"pending_total"`
	ActiveTotal        int             `json:"active_total"`
	AccountPending     int             `json:"account_pending"`
	AccountActive      int             `json:"account_active"`
	RecordCount        int             `json:"record_count"`
	AccountRecordCount int             `json:"account_record_count"`
}

func newSummaryJSON(s *query.Summary) summaryJSON {
	return summaryJSON{
		LedgerTotal:        s.LedgerTotal,
		AccountLedgerTotal: s.AccountLedgerTotal,
		AccountID:          s.AccountID,
		PendingTotal:       s.PendingTotal,
		ActiveTotal:        s.ActiveTotal,
		AccountPending:     s.AccountPending,
		AccountActive:      s.AccountActive,
		RecordCount:        s.RecordCount,
		AccountRecordCount: s.AccountRecordCount,
	}
}

type enqueueBody struct {
	CatalogItemID string `json:"catalog_item_id"`
	AccountID     string `json:"account_id"`
	Quantity      int    `json:"quantity"`
}

type advanceBody struct {
	Status string `json:"status"`
}

type itemBody struct {
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	ImageRef    *string          `json:"image_ref"`
	ID          string           `json:"id"`
}

type accountBody struct {
	DisplayName *string `json:"display_name"`
	Class       *string `json:"account_class"`
	Access      *string `json:"access_class"`
	ID          string  `json:"id"`
	Credential  string  `json:"credential"`
}

type credentialBody struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}
