package sheets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

// LedgerTab is the name of the tab the writer owns.
const LedgerTab = "Ledger"

// LedgerRow is one line of the Ledger tab.
type LedgerRow struct {
	CompletedAt time.Time
	RequestedAt time.Time
	Value       decimal.Decimal
	Item        string
	Account     string
	Class       string
	Quantity    int
}

// LedgerExport holds everything written in one export.
type LedgerExport struct {
	Title string
	Total decimal.Decimal
	Rows  []LedgerRow
}

// NewLedgerExport converts history rows, keeping their order.
func NewLedgerExport(title string, rows []query.HistoryRow) LedgerExport {
	export := LedgerExport{
		Title: title,
		Total: query.TotalValue(rows),
		Rows:  make([]LedgerRow, len(rows)),
	}

	for i, r := range rows {
		item := r.ItemName
		if item == "" {
			item = r.CatalogItemID
		}
		account := r.AccountName
		if account == "" {
			account = r.AccountID
		}
		export.Rows[i] = LedgerRow{
			CompletedAt: r.CompletedAt,
			RequestedAt: r.RequestedAt,
			Item:        item,
			Account:     account,
			Class:       string(r.AccountClass),
			Quantity:    r.Quantity,
			Value:       r.Value,
		}
	}
	return export
}
