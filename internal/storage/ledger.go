package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const recordColumns = `id, request_id, catalog_item_id, quantity, value, account_id, account_class, requested_at, completed_at`

// ListTransactionRecords returns matching ledger records, most recent completion first.
func (s *SQLiteStorage) ListTransactionRecords(ctx context.Context, filter service.RecordFilter) ([]model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.AccountClass != "" {
		where = append(where, "account_class = ?")
		args = append(args, string(filter.AccountClass))
	}
	if filter.Since != nil {
		where = append(where, "completed_at >= ?")
		args = append(args, utc(*filter.Since))
	}
	if filter.Until != nil {
		where = append(where, "completed_at <= ?")
		args = append(args, utc(*filter.Until))
	}

	query := `SELECT ` + recordColumns + ` FROM transaction_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY completed_at DESC, rowid DESC"
	query, args = appendPaging(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewStoreError("list transaction records", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLiteStorage) GetRecordByRequest(ctx context.Context, requestID string) (*model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(requestID, "requestID"); err != nil {
		return nil, err
	}

	record, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM transaction_records
		WHERE request_id = ?
	`, requestID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("transaction record for request", requestID)
	}
	if err != nil {
		return nil, common.NewStoreError("get transaction record", err)
	}
	return record, nil
}

// insertRecordTx appends a record. The ledger has no update or delete path.
func insertRecordTx(ctx context.Context, q queryable, record *model.TransactionRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transaction_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.RequestID, record.CatalogItemID, record.Quantity, record.Value.String(),
		record.AccountID, string(record.AccountClass), utc(record.RequestedAt), utc(record.CompletedAt))
	if err != nil {
		return common.NewStoreError("insert transaction record", err)
	}
	return nil
}

func scanRecord(row rowScanner) (*model.TransactionRecord, error) {
	var record model.TransactionRecord
	var value, class string
	if err := row.Scan(
		&record.ID,
		&record.RequestID,
		&record.CatalogItemID,
		&record.Quantity,
		&value,
		&record.AccountID,
		&class,
		&record.RequestedAt,
		&record.CompletedAt,
	); err != nil {
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

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}
