package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const requestColumns = `id, catalog_item_id, quantity, account_id, status, account_class, created_at, updated_at`

// InsertRequest stores a newly enqueued request. The references are checked by
// the insert itself and the request takes the account's stored class. A
// missing reference yields common.NotFoundError and nothing is written.
func (s *Store) InsertRequest(ctx context.Context, req *model.QueueRequest) error {
	if err := service.ValidateRequest(req); err != nil {
		return err
	}
	req.CreatedAt = utc(req.CreatedAt)
	req.UpdatedAt = utc(req.UpdatedAt)

	var class string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO queue_requests (`+requestColumns+`)
		SELECT $1, c.id, $2, a.id, $3, a.account_class, $4, $5
		FROM catalog_items c, accounts a
		WHERE c.id = $6 AND a.id = $7
		RETURNING account_class
	`, req.ID, req.Quantity, string(req.Status), req.CreatedAt, req.UpdatedAt,
		req.CatalogItemID, req.AccountID).Scan(&class)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := getCatalogItem(ctx, s.pool, req.CatalogItemID, ""); err != nil {
			return err
		}
		if _, err := getAccount(ctx, s.pool, req.AccountID); err != nil {
			return err
		}
		return common.NewStoreError("insert request", errors.New("references changed during insert"))
	}
	if err != nil {
		return common.NewStoreError("insert request", err)
	}

	req.AccountClass = model.AccountClass(class)
	return nil
}

// GetRequest retrieves a request by identifier.
func (s *Store) GetRequest(ctx context.Context, id string) (*model.QueueRequest, error) {
	return getRequest(ctx, s.pool, id, "")
}

func getRequest(ctx context.Context, q querier, id, lock string) (*model.QueueRequest, error) {
	req, err := scanRequest(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM queue_requests WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("request", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get request", err)
	}
	return req, nil
}

// ListRequests returns matching requests, creation-ascending.
func (s *Store) ListRequests(ctx context.Context, filter service.RequestFilter) ([]model.QueueRequest, error) {
	var w whereClause
	if filter.AccountID != "" {
		w.add("account_id = ?", filter.AccountID)
	}
	if filter.AccountClass != "" {
		w.add("account_class = ?", string(filter.AccountClass))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		w.add("status = ANY(?)", statuses)
	}

	query := `SELECT ` + requestColumns + ` FROM queue_requests` + w.String() +
		` ORDER BY created_at ASC, seq ASC`
	query += w.paging(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, common.NewStoreError("list requests", err)
	}
	defer rows.Close()

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
func (s *Store) TransitionRequest(ctx context.Context, id string, from, to model.Status, at time.Time) error {
	if to == model.StatusCompleted {
		return &common.InvalidTransitionError{RequestID: id, From: from, To: to}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_requests SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`, string(to), utc(at), id, string(from))
	if err != nil {
		return common.NewStoreError("update request status", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := s.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return &common.InvalidTransitionError{RequestID: id, From: current.Status, To: to}
}

// CompleteRequest locks the request row and runs the completion protocol in
// one transaction. Concurrent completers queue on the row lock and then see
// the request already completed.
func (s *Store) CompleteRequest(ctx context.Context, id, recordID string, at time.Time) (*model.TransactionRecord, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, common.NewStoreError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := getRequest(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if req.Status != model.StatusReady {
		return nil, &common.InvalidTransitionError{RequestID: id, From: req.Status, To: model.StatusCompleted}
	}

	item, err := getCatalogItem(ctx, tx, req.CatalogItemID, " FOR SHARE")
	if errors.Is(err, common.ErrNotFound) {
		return nil, &common.DanglingReferenceError{RequestID: id, CatalogItemID: req.CatalogItemID}
	}
	if err != nil {
		return nil, err
	}

	record := model.NewTransactionRecord(recordID, req, item, utc(at))
	if err := insertRecord(ctx, tx, &record); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE queue_requests SET status = $1, updated_at = $2 WHERE id = $3
	`, string(model.StatusCompleted), record.CompletedAt, id); err != nil {
		return nil, common.NewStoreError("update request status", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, common.NewStoreError("commit completion", err)
	}
	return &record, nil
}

func scanRequest(row pgx.Row) (*model.QueueRequest, error) {
	var req model.QueueRequest
	var status, class string
	if err := row.Scan(&req.ID, &req.CatalogItemID, &req.Quantity, &req.AccountID,
		&status, &class, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	req.Status = model.Status(status)
	req.AccountClass = model.AccountClass(class)
	return &req, nil
}
