package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const catalogColumns = `id, name, description, unit_price, image_ref, created_at`

// CreateCatalogItem stores a new catalog item.
func (s *SQLiteStorage) CreateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := service.ValidateCatalogItem(item); err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.CreatedAt = utc(item.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (`+catalogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, item.ID, item.Name, item.Description, item.UnitPrice.String(), item.ImageRef, item.CreatedAt)
	if err != nil {
		return common.NewStoreError("create catalog item", err)
	}

	s.catalogCache.invalidate(item.ID)
	return nil
}

// GetCatalogItem retrieves a catalog item, serving repeat reads from the cache.
func (s *SQLiteStorage) GetCatalogItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	if item, ok := s.catalogCache.get(id); ok {
		return item, nil
	}

	gen := s.catalogCache.generation()
	item, err := getCatalogItemTx(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	s.catalogCache.put(id, *item, gen)
	return item, nil
}

// getCatalogItemTx reads straight from the database, bypassing the cache.
func getCatalogItemTx(ctx context.Context, q queryable, id string) (*model.CatalogItem, error) {
	item, err := scanCatalogItem(q.QueryRowContext(ctx, `
		SELECT `+catalogColumns+`
		FROM catalog_items
		WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewNotFoundError("catalog item", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get catalog item", err)
	}
	return item, nil
}

// ListCatalogItems returns every catalog item ordered by name.
func (s *SQLiteStorage) ListCatalogItems(ctx context.Context) ([]model.CatalogItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+catalogColumns+`
		FROM catalog_items
		ORDER BY name COLLATE NOCASE, id
	`)
	if err != nil {
		return nil, common.NewStoreError("list catalog items", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, common.NewStoreError("scan catalog item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewStoreError("list catalog items", err)
	}

	return items, nil
}

// UpdateCatalogItem replaces the mutable fields of an existing item.
func (s *SQLiteStorage) UpdateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := service.ValidateCatalogItem(item); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET name = ?, description = ?, unit_price = ?, image_ref = ?
		WHERE id = ?
	`, item.Name, item.Description, item.UnitPrice.String(), item.ImageRef, item.ID)
	s.catalogCache.invalidate(item.ID)
	if err != nil {
		return common.NewStoreError("update catalog item", err)
	}

	return requireAffected(result, "catalog item", item.ID)
}

// DeleteCatalogItem removes an item. Requests and records keep their reference.
func (s *SQLiteStorage) DeleteCatalogItem(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = ?`, id)
	s.catalogCache.invalidate(id)
	if err != nil {
		return common.NewStoreError("delete catalog item", err)
	}

	return requireAffected(result, "catalog item", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (*model.CatalogItem, error) {
	var item model.CatalogItem
	var price string
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Description,
		&price,
		&item.ImageRef,
		&item.CreatedAt,
	); err != nil {
		return nil, err
	}

	unitPrice, err := parseDecimal(price)
	if err != nil {
		return nil, fmt.Errorf("catalog item %s: %w", item.ID, err)
	}
	item.UnitPrice = unitPrice
	return &item, nil
}

func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return common.NewStoreError("rows affected", err)
	}
	if n == 0 {
		return common.NewNotFoundError(kind, id)
	}
	return nil
}
