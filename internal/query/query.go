// Package query computes the read views over requests and the ledger. It never
// writes and holds no state of its own, so it is safe to use concurrently with
// the queue engine.
package query

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// DefaultPageSize is the number of rows per page in the admin views.
const DefaultPageSize = 10

// Store is the read-only persistence the query layer needs.
type Store interface {
	ListRequests(ctx context.Context, filter service.RequestFilter) ([]model.QueueRequest, error)
	ListTransactionRecords(ctx context.Context, filter service.RecordFilter) ([]model.TransactionRecord, error)
	ListCatalogItems(ctx context.Context) ([]model.CatalogItem, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// RequestRow is a request with its references resolved for display.
// Names are empty when the referenced item or account has since been deleted.
type RequestRow struct {
	model.QueueRequest
	ItemName    string
	AccountName string
}

// HistoryRow is a ledger record with its references resolved for display.
type HistoryRow struct {
	model.TransactionRecord
	ItemName    string
	AccountName string
}

var activeStatuses = []model.Status{model.StatusPending, model.StatusPreparing, model.StatusReady}

// Service answers queue and history queries.
type Service struct {
	store Store
}

// New creates a query service over store.
func New(store Store) *Service {
	return &Service{store: store}
}

// ActiveForAccount returns the account's non-terminal requests, oldest first.
func (s *Service) ActiveForAccount(ctx context.Context, accountID string) ([]RequestRow, error) {
	return s.requests(ctx, service.RequestFilter{AccountID: accountID, Statuses: activeStatuses})
}

// ActiveAll returns every non-terminal request, oldest first.
func (s *Service) ActiveAll(ctx context.Context) ([]RequestRow, error) {
	return s.requests(ctx, service.RequestFilter{Statuses: activeStatuses})
}

// PendingForAccount returns the account's pending requests, oldest first.
func (s *Service) PendingForAccount(ctx context.Context, accountID string) ([]RequestRow, error) {
	return s.requests(ctx, service.RequestFilter{AccountID: accountID, Statuses: []model.Status{model.StatusPending}})
}

// PendingAll returns every pending request, oldest first.
func (s *Service) PendingAll(ctx context.Context) ([]RequestRow, error) {
	return s.requests(ctx, service.RequestFilter{Statuses: []model.Status{model.StatusPending}})
}

func (s *Service) requests(ctx context.Context, filter service.RequestFilter) ([]RequestRow, error) {
	reqs, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]RequestRow, len(reqs))
	for i, req := range reqs {
		rows[i] = RequestRow{
			QueueRequest: req,
			ItemName:     names.items[req.CatalogItemID],
			AccountName:  names.accounts[req.AccountID],
		}
	}
	return rows, nil
}

// HistoryForAccount returns the account's ledger records.
func (s *Service) HistoryForAccount(ctx context.Context, accountID string, opts HistoryOptions) ([]HistoryRow, error) {
	return s.history(ctx, service.RecordFilter{AccountID: accountID, AccountClass: opts.AccountClass}, opts)
}

// HistoryAll returns every ledger record.
func (s *Service) HistoryAll(ctx context.Context, opts HistoryOptions) ([]HistoryRow, error) {
	return s.history(ctx, service.RecordFilter{AccountClass: opts.AccountClass}, opts)
}

func (s *Service) history(ctx context.Context, filter service.RecordFilter, opts HistoryOptions) ([]HistoryRow, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	filter.Since = opts.Since
	filter.Until = opts.Until

	records, err := s.store.ListTransactionRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction records: %w", err)
	}

	names, err := s.names(ctx)
	if err != nil {
		return nil, err
	}

	sortBy, _ := ParseSortField(string(opts.SortBy))
	needle := strings.ToLower(strings.TrimSpace(opts.Search))
	rows := make([]HistoryRow, 0, len(records))
	for _, record := range records {
		row := HistoryRow{
			TransactionRecord: record,
			ItemName:          names.items[record.CatalogItemID],
			AccountName:       names.accounts[record.AccountID],
		}
		if needle != "" && !row.matches(needle) {
			continue
		}
		rows = append(rows, row)
	}

	sortHistory(rows, sortBy, opts.Ascending)
	return rows, nil
}

// matches reports whether needle occurs in the item name, account name, value or quantity.
func (r HistoryRow) matches(needle string) bool {
	fields := []string{
		r.ItemName,
		r.AccountName,
		r.Value.String(),
		r.Value.StringFixed(2),
		strconv.Itoa(r.Quantity),
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func sortHistory(rows []HistoryRow, by SortField, ascending bool) {
	less := func(a, b HistoryRow) int {
		switch by {
		case SortRequestedAt:
			return a.RequestedAt.Compare(b.RequestedAt)
		case SortValue:
			return a.Value.Cmp(b.Value)
		case SortQuantity:
			return a.Quantity - b.Quantity
		case SortItem:
			return strings.Compare(strings.ToLower(a.ItemName), strings.ToLower(b.ItemName))
		case SortAccount:
			return strings.Compare(strings.ToLower(a.AccountName), strings.ToLower(b.AccountName))
		default:
			return a.CompletedAt.Compare(b.CompletedAt)
		}
	}

	// Stable so that ties keep the store's completion-descending order.
	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if ascending {
			return c < 0
		}
		return c > 0
	})
}

// AggregateValue sums the value of records.
func AggregateValue(records []model.TransactionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Value)
	}
	return total
}

// TotalValue sums the value of history rows.
func TotalValue(rows []HistoryRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Value)
	}
	return total
}

// Paginate returns the 1-based page of items, the page actually served and
// the number of pages. Out-of-range pages are clamped; an empty list is page 1
// of 0.
func Paginate[T any](items []T, page, perPage int) (shown []T, current, pages int) {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	pages = (len(items) + perPage - 1) / perPage
	if pages == 0 {
		return nil, 1, 0
	}
	current = min(max(page, 1), pages)

	start := (current - 1) * perPage
	end := min(start+perPage, len(items))
	return items[start:end], current, pages
}

type nameIndex struct {
	items    map[string]string
	accounts map[string]string
}

func (s *Service) names(ctx context.Context) (*nameIndex, error) {
	items, err := s.store.ListCatalogItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	idx := &nameIndex{
		items:    make(map[string]string, len(items)),
		accounts: make(map[string]string, len(accounts)),
	}
	for _, item := range items {
		idx.items[item.ID] = item.Name
	}
	for _, account := range accounts {
		idx.accounts[account.ID] = account.DisplayName
	}
	return idx, nil
}
