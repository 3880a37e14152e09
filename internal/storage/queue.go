package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const requestColumns = `id, catalog_item_id, quantity, account_id, status, account_class, created_at, updated_at`

// InsertRequest stores a newly enqueued request. The catalog item and account
// are checked in the same statement that writes the row, never through the
// read caches, and the request takes the account's class as stored right now.
// A missing reference yields common.NotFoundError and nothing is written.
func (s *SQLiteStorage) InsertRequest(ctx context.Context, req *model.QueueRequest) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := service.ValidateRequest(req); err != nil {
		return err
	}
	req.CreatedAt = utc(req.CreatedAt)
	req.UpdatedAt = utc(req.UpdatedAt)

	var class string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO queue_requests (`+requestColumns+`)
		SELECT ?, c.id, ?, a.id, ?, a.account_class, ?, ?
		FROM catalog_items c, accounts a
		WHERE c.id = ? AND a.id = ?
		RETURNING account_class
	`, req.ID, req.Quantity, string(req.Status), req.CreatedAt, req.UpdatedAt,
		req.CatalogItemID, req.AccountID).Scan(&class)
	if errors.Is(err, sql.ErrNoRows) {
		return missingReference(ctx, s.db, req)
	}
	if err != nil {
		return common.NewStoreError("insert request", err)
	}

	req.AccountClass = model.AccountClass(class)
	return nil
}

// missingReference reports which reference stopped an insert.
func missingReference(ctx context.Context, q queryable, req *model.QueueRequest) error {
	if _, err := getCatalogItemTx(ctx, q, req.CatalogItemID); err != nil {
		return err
	}
	if _, err := getAccountTx(ctx, q, req.AccountID); err != nil {
		return err
	}
	return common.NewStoreError("insert request", errors.New("references changed during insert"))
}

// GetRequest retrieves a request by identifier. Requests are never cached.
func (s *SQLiteStorage) GetRequest(ctx context.Context, id string) (*model.QueueRequest, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getRequestTx(ctx, s.db, id)
}

func getRequestTx(ctx context.Context, q queryable, id string) (*model.QueueRequest, error) {
	req, err := scanRequest(q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM queue_requests
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("request", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get request", err)
	}
	return req, nil
}

// ListRequests returns matching requests, creation-ascending.
func (s *SQLiteStorage) ListRequests(ctx context.Context, filter service.RequestFilter) ([]model.QueueRequest, error) {
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
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + requestColumns + ` FROM queue_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, rowid ASC"
	query, args = appendPaging(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.NewStoreError("list requests", err)
	}
	defer func() { _ = rows.Close() }()

	var requests []model.QueueRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, common.NewStoreError("scan request", err)
		}
		requests = append(requests, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStoreError("list requests", err)
	}

	return requests, nil
}

// TransitionRequest performs a compare-and-set status write.
func (s *SQLiteStorage) TransitionRequest(ctx context.Context, id string, from, to model.Status, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if to == model.StatusCompleted {
		return &common.InvalidTransitionError{RequestID: id, From: from, To: to}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewStoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := casStatusTx(ctx, tx, id, from, to, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return common.NewStoreError("commit transition", err)
	}
	return nil
}

// CompleteRequest runs the completion protocol inside a single transaction:
// status write, catalog lookup, record insert. Any failure rolls everything back.
func (s *SQLiteStorage) CompleteRequest(ctx context.Context, id, recordID string, at time.Time) (*model.TransactionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.NewStoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The status write comes first so the database write lock is held for the
	// rest of the protocol.
	if err := casStatusTx(ctx, tx, id, model.StatusReady, model.StatusCompleted, at); err != nil {
		return nil, err
	}

	req, err := getRequestTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	item, err := getCatalogItemTx(ctx, tx, req.CatalogItemID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, &common.DanglingReferenceError{RequestID: id, CatalogItemID: req.CatalogItemID}
	}
	if err != nil {
		return nil, err
	}

	record := model.NewTransactionRecord(recordID, req, item, utc(at))
	if err := insertRecordTx(ctx, tx, &record); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, common.NewStoreError("commit completion", err)
	}
	return &record, nil
}

// casStatusTx moves id from one status to another only if it still holds from.
func casStatusTx(ctx context.Context, q queryable, id string, from, to model.Status, at time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE queue_requests
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), utc(at), id, string(from))
	if err != nil {
		return common.NewStoreError("update request status", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return common.NewStoreError("rows affected", err)
	}
	if n == 1 {
		return nil
	}

	// Lost the race or never existed; report what is actually stored.
	current, err := getRequestTx(ctx, q, id)
	if err != nil {
		return err
	}
	return &common.InvalidTransitionError{RequestID: id, From: current.Status, To: to}
}

func scanRequest(row rowScanner) (*model.QueueRequest, error) {
	var req model.QueueRequest
	var status, class string
	if err := row.Scan(
		&req.ID,
		&req.CatalogItemID,
		&req.Quantity,
		&req.AccountID,
		&status,
		&class,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		return nil, err
	}
	req.Status = model.Status(status)
	req.AccountClass = model.AccountClass(class)
	return &req, nil
}

func appendPaging(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}
	return query, args
}
