package cli

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

const timeLayout = "2006-01-02 15:04"

// RenderTable lays rows out in left-aligned columns under a styled header.
// Widths are measured with lipgloss so styled cells stay aligned.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	writeRow(&b, widths, headers, TableHeaderStyle)
	for _, row := range rows {
		writeRow(&b, widths, row, lipgloss.NewStyle())
	}
	return b.String()
}

func writeRow(b *strings.Builder, widths []int, cells []string, style lipgloss.Style) {
	for i, w := range widths {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(style.Render(cell))
		if i < len(widths)-1 {
			b.WriteString(strings.Repeat(" ", w-lipgloss.Width(cell)))
		}
	}
	b.WriteString("\n")
}

func orID(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

// RequestTable renders board rows.
func RequestTable(rows []query.RequestRow) string {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{
			r.ID,
			orID(r.ItemName, r.CatalogItemID),
			strconv.Itoa(r.Quantity),
			orID(r.AccountName, r.AccountID),
			string(r.AccountClass),
			FormatStatus(r.Status),
			r.CreatedAt.Local().Format(timeLayout),
		}
	}
	return RenderTable([]string{"ID", "ITEM", "QTY", "ACCOUNT", "CLASS", "STATUS", "REQUESTED"}, cells)
}

// HistoryTable renders ledger rows followed by their total.
func HistoryTable(rows []query.HistoryRow, total decimal.Decimal) string {
	cells := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		cells = append(cells, []string{
			r.CompletedAt.Local().Format(timeLayout),
			orID(r.ItemName, r.CatalogItemID),
			strconv.Itoa(r.Quantity),
			orID(r.AccountName, r.AccountID),
			string(r.AccountClass),
			r.Value.StringFixed(2),
		})
	}
	cells = append(cells, []string{"", "", "", "", BoldStyle.Render("TOTAL"), BoldStyle.Render(total.StringFixed(2))})
	return RenderTable([]string{"COMPLETED", "ITEM", "QTY", "ACCOUNT", "CLASS", "VALUE"}, cells)
}

// CatalogTable renders catalog items.
func CatalogTable(items []model.CatalogItem) string {
	cells := make([][]string, len(items))
	for i, item := range items {
		cells[i] = []string{item.ID, item.Name, item.UnitPrice.StringFixed(2), item.Description}
	}
	return RenderTable([]string{"ID", "NAME", "UNIT PRICE", "DESCRIPTION"}, cells)
}

// AccountTable renders accounts without credential material.
func AccountTable(accounts []model.Account) string {
	cells := make([][]string, len(accounts))
	for i, a := range accounts {
		flag := ""
		if a.MustChangeCredential {
			flag = WarningStyle.Render("must change credential")
		}
		cells[i] = []string{a.ID, a.DisplayName, string(a.Class), string(a.Access), flag}
	}
	return RenderTable([]string{"ID", "NAME", "CLASS", "ACCESS", ""}, cells)
}
