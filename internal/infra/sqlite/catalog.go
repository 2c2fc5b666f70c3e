package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/budgetpool/budgetpool/internal/domain"
)

// ─── Item Catalog Operations ────────────────────────────────────────────────
// Predefined purchasable items the sub-admin UI offers alongside free-form
// cart lines. Plain CRUD; the ledger never depends on the catalog.

// UpsertCatalogItem inserts or updates a predefined item.
func (d *DB) UpsertCatalogItem(ctx context.Context, item domain.CatalogItem) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, name, price) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price
	`, item.ID, item.Name, item.Price.String())
	return err
}

// GetCatalogItem retrieves one item by ID.
func (d *DB) GetCatalogItem(ctx context.Context, id string) (domain.CatalogItem, error) {
	var item domain.CatalogItem
	var priceStr string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, name, price FROM catalog_items WHERE id = ?
	`, id).Scan(&item.ID, &item.Name, &priceStr)
	if err == sql.ErrNoRows {
		return domain.CatalogItem{}, fmt.Errorf("catalog item %s: not found", id)
	}
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if item.Price, err = decimal.NewFromString(priceStr); err != nil {
		return domain.CatalogItem{}, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	return item, nil
}

// ListCatalogItems returns all predefined items sorted by name.
func (d *DB) ListCatalogItems(ctx context.Context) ([]domain.CatalogItem, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, price FROM catalog_items ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var item domain.CatalogItem
		var priceStr string
		if err := rows.Scan(&item.ID, &item.Name, &priceStr); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", priceStr, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteCatalogItem removes a predefined item.
func (d *DB) DeleteCatalogItem(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE id = ?`, id)
	return err
}
