package postgres

import (
	"context"
	"errors"
	"fmt"

	"warehouse-ledger/internal/core"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, sku, name, unit_price, cost_price, reorder_level, reorder_quantity, is_active`

func scanProduct(row pgx.Row) (*core.Product, error) {
	var p core.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.CostPrice, &p.ReorderLevel, &p.ReorderQuantity, &p.IsActive)
	return &p, err
}

func (s *Store) ProductByID(ctx context.Context, id int64) (*core.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("product", id)
		}
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) ProductBySKU(ctx context.Context, sku string) (*core.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE sku = $1", sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("product", sku)
		}
		return nil, fmt.Errorf("failed to load product %s: %w", sku, err)
	}
	return p, nil
}

// ListProducts returns active products ordered by SKU.
func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+productColumns+" FROM products WHERE is_active ORDER BY sku")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []core.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) WarehouseByID(ctx context.Context, id int64) (*core.Warehouse, error) {
	var w core.Warehouse
	err := s.pool.QueryRow(ctx,
		"SELECT id, name, location, capacity, is_active FROM warehouses WHERE id = $1", id,
	).Scan(&w.ID, &w.Name, &w.Location, &w.Capacity, &w.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("warehouse", id)
		}
		return nil, fmt.Errorf("failed to load warehouse %d: %w", id, err)
	}
	return &w, nil
}

// UpsertProduct inserts p or updates the row with the same SKU, and sets p.ID.
func (s *Store) UpsertProduct(ctx context.Context, p *core.Product) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (sku, name, unit_price, cost_price, reorder_level, reorder_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			cost_price = EXCLUDED.cost_price,
			reorder_level = EXCLUDED.reorder_level,
			reorder_quantity = EXCLUDED.reorder_quantity,
			is_active = EXCLUDED.is_active
		RETURNING id
	`, p.SKU, p.Name, p.UnitPrice, p.CostPrice, p.ReorderLevel, p.ReorderQuantity, p.IsActive).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.SKU, err)
	}
	return nil
}

// UpsertWarehouse inserts w or updates the row with the same name, and sets w.ID.
func (s *Store) UpsertWarehouse(ctx context.Context, w *core.Warehouse) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO warehouses (name, location, capacity, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			location = EXCLUDED.location,
			capacity = EXCLUDED.capacity,
			is_active = EXCLUDED.is_active
		RETURNING id
	`, w.Name, w.Location, w.Capacity, w.IsActive).Scan(&w.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert warehouse %s: %w", w.Name, err)
	}
	return nil
}
