package query

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

// Summary holds the dashboard counters.
type Summary struct {
	LedgerTotal        decimal.Decimal
	AccountLedgerTotal decimal.Decimal
	AccountID          string
	PendingTotal       int
	ActiveTotal        int
	AccountPending     int
	AccountActive      int
	RecordCount        int
	AccountRecordCount int
}

// Summary computes overall counters, plus per-account ones when accountID is set.
func (s *Service) Summary(ctx context.Context, accountID string) (*Summary, error) {
	active, err := s.store.ListRequests(ctx, service.RequestFilter{Statuses: activeStatuses})
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	records, err := s.store.ListTransactionRecords(ctx, service.RecordFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction records: %w", err)
	}

	sum := &Summary{
		AccountID:          accountID,
		ActiveTotal:        len(active),
		RecordCount:        len(records),
		LedgerTotal:        AggregateValue(records),
		AccountLedgerTotal: decimal.Zero,
	}

	for _, req := range active {
		mine := accountID != "" && req.AccountID == accountID
		if req.Status == model.StatusPending {
			sum.PendingTotal++
			if mine {
				sum.AccountPending++
			}
		}
		if mine {
			sum.AccountActive++
		}
	}

	if accountID != "" {
		for _, r := range records {
			if r.AccountID == accountID {
				sum.AccountRecordCount++
				sum.AccountLedgerTotal = sum.AccountLedgerTotal.Add(r.Value)
			}
		}
	}

	return sum, nil
}
