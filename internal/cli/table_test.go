package cli

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

func TestRenderTable_AlignsColumns(t *testing.T) {
	out := RenderTable([]string{"ID", "NAME"}, [][]string{
		{"a", "short"},
		{"longer-id", "x"},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[1], "short"), strings.Index(lines[2], "x"))
}

func TestHistoryTable_FallsBackToIDs(t *testing.T) {
	rows := []query.HistoryRow{{
		TransactionRecord: model.TransactionRecord{
			CatalogItemID: "deleted-item",
			AccountID:     "ward-a",
			AccountClass:  model.ClassInternal,
			Quantity:      2,
			Value:         decimal.RequireFromString("7"),
		},
		AccountName: "Ward A",
	}}

	out := HistoryTable(rows, decimal.RequireFromString("7"))
	assert.Contains(t, out, "deleted-item")
	assert.Contains(t, out, "Ward A")
	assert.Contains(t, out, "7.00")
	assert.Contains(t, out, "TOTAL")
}

func TestAccountTable_OmitsCredentials(t *testing.T) {
	out := AccountTable([]model.Account{{
		ID:             "ward-a",
		DisplayName:    "Ward A",
		CredentialHash: "$2a$04$secret",
		Class:          model.ClassInternal,
		Access:         model.AccessUser,
	}})
	assert.Contains(t, out, "Ward A")
	assert.NotContains(t, out, "secret")
}
