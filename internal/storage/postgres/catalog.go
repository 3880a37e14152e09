package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
)

const catalogColumns = `id, name, description, unit_price::text, image_ref, created_at`

// CreateCatalogItem stores a new catalog item.
func (s *Store) CreateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	if err := service.ValidateCatalogItem(item); err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.CreatedAt = utc(item.CreatedAt)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO catalog_items (id, name, description, unit_price, image_ref, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`, item.ID, item.Name, item.Description, item.UnitPrice.String(), item.ImageRef, item.CreatedAt)
	return common.NewStoreError("create catalog item", err)
}

// GetCatalogItem retrieves a catalog item by identifier.
func (s *Store) GetCatalogItem(ctx context.Context, id string) (*model.CatalogItem, error) {
	return getCatalogItem(ctx, s.pool, id, "")
}

func getCatalogItem(ctx context.Context, q querier, id, lock string) (*model.CatalogItem, error) {
	item, err := scanCatalogItem(q.QueryRow(ctx, `SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("catalog item", id)
	}
	if err != nil {
		return nil, common.NewStoreError("get catalog item", err)
	}
	return item, nil
}

// ListCatalogItems returns every catalog item ordered by name.
func (s *Store) ListCatalogItems(ctx context.Context) ([]model.CatalogItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+catalogColumns+` FROM catalog_items ORDER BY lower(name), id`)
	if err != nil {
		return nil, common.NewStoreError("list catalog items", err)
	}
	defer rows.Close()

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
func (s *Store) UpdateCatalogItem(ctx context.Context, item *model.CatalogItem) error {
	if err := service.ValidateCatalogItem(item); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE catalog_items
		SET name = $1, description = $2, unit_price = $3::numeric, image_ref = $4
		WHERE id = $5
	`, item.Name, item.Description, item.UnitPrice.String(), item.ImageRef, item.ID)
	if err != nil {
		return common.NewStoreError("update catalog item", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("catalog item", item.ID)
	}
	return nil
}

// DeleteCatalogItem removes an item. Requests and records keep their reference.
func (s *Store) DeleteCatalogItem(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM catalog_items WHERE id = $1`, id)
	if err != nil {
		return common.NewStoreError("delete catalog item", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NewNotFoundError("catalog item", id)
	}
	return nil
}

func scanCatalogItem(row pgx.Row) (*model.CatalogItem, error) {
	var item model.CatalogItem
	var price string
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &price, &item.ImageRef, &item.CreatedAt); err != nil {
		return nil, err
	}
	unitPrice, err := parseDecimal(price)
	if err != nil {
		return nil, fmt.Errorf("catalog item %s: %w", item.ID, err)
	}
	item.UnitPrice = unitPrice
	return &item, nil
}
