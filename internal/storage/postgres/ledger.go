package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const recordColumns = `id, request_id, catalog_item_id, quantity, value::text, account_id, account_class, requested_at, completed_at`

// ListTransactionRecords returns matching ledger records, most recent completion first.
func (s *Store) ListTransactionRecords(ctx context.Context, filter service.RecordFilter) ([]model.TransactionRecord, error) {
	var w whereClause
	if filter.AccountID != "" {
		w.add("account_id = ?", filter.AccountID)
	}
	if filter.AccountClass != "" {
		w.add("account_class = ?", string(filter.AccountClass))
	}
	if filter.Since != nil {
		w.add("completed_at >= ?", utc(*filter.Since))
	}
	if filter.Until != nil {
		w.add("completed_at <= ?", utc(*filter.Until))
	}

	query := `SELECT ` + recordColumns + ` FROM transaction_records` + w.String() +
		` ORDER BY completed_at DESC, seq DESC`
	query += w.paging(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, common.NewStoreError("list transaction records", err)
	}
	defer rows.Close()

	var records []model.TransactionRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, common.NewStoreError("scan transaction record", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStoreError("list transaction records", err)
	}
	return records, nil
}

// GetRecordByRequest returns the ledger record materialized from requestID.
func (s *Store) GetRecordByRequest(ctx context.Context, requestID string) (*model.TransactionRecord, error) {
	record, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM transaction_records WHERE request_id = $1`, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("transaction record for request", requestID)
	}
	if err != nil {
		return nil, common.NewStoreError("get transaction record", err)
	}
	return record, nil
}

func insertRecord(ctx context.Context, q querier, record *model.TransactionRecord) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transaction_records
			(id, request_id, catalog_item_id, quantity, value, account_id, account_class, requested_at, completed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
	`, record.ID, record.RequestID, record.CatalogItemID, record.Quantity, record.Value.String(),
		record.AccountID, string(record.AccountClass), utc(record.RequestedAt), utc(record.CompletedAt))
	if isUniqueViolation(err) {
		// The row lock makes this unreachable unless another writer bypassed it.
		return &common.InvalidTransitionError{RequestID: record.RequestID, From: model.StatusCompleted, To: model.StatusCompleted}
	}
	return common.NewStoreError("insert transaction record", err)
}

func scanRecord(row pgx.Row) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	var value, class string
	if err := row.Scan(&record.ID, &record.RequestID, &record.CatalogItemID, &record.Quantity,
		&value, &record.AccountID, &class, &record.RequestedAt, &record.CompletedAt); err != nil {
		return nil, err
	}
	v, err := parseDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", record.ID, err)
	}
	record.Value = v
	record.AccountClass = model.AccountClass(class)
	return &record, nil
}
