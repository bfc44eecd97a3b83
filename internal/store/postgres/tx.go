package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"warehouse-ledger/internal/core"

	"github.com/jackc/pgx/v5"
)

type tx struct {
	q querier
}

const stockColumns = `product_id, warehouse_id, quantity_on_hand, quantity_reserved, last_restock_date, updated_at, version`

func scanStock(row pgx.Row) (core.StockLedgerEntry, error) {
	var e core.StockLedgerEntry
	err := row.Scan(&e.ProductID, &e.WarehouseID, &e.QuantityOnHand, &e.QuantityReserved,
		&e.LastRestockDate, &e.UpdatedAt, &e.Version)
	return e, err
}

func getStock(ctx context.Context, q querier, key core.LedgerKey) (core.StockLedgerEntry, error) {
	e, err := scanStock(q.QueryRow(ctx,
		"SELECT "+stockColumns+" FROM stock_ledger WHERE product_id = $1 AND warehouse_id = $2",
		key.ProductID, key.WarehouseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.StockLedgerEntry{LedgerKey: key}, nil
		}
		return core.StockLedgerEntry{}, fmt.Errorf("failed to load stock %s: %w", key, err)
	}
	return e, nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

// LockStock materializes missing rows so they can be locked, then takes FOR UPDATE
// locks one key at a time in LedgerKey order.
func (t *tx) LockStock(ctx context.Context, keys ...core.LedgerKey) error {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, core.LedgerKey.Compare)
	for _, k := range slices.Compact(sorted) {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO stock_ledger (product_id, warehouse_id)
			VALUES ($1, $2)
			ON CONFLICT (product_id, warehouse_id) DO NOTHING
		`, k.ProductID, k.WarehouseID); err != nil {
			return fmt.Errorf("failed to create stock row %s: %w", k, err)
		}
		if _, err := t.q.Exec(ctx,
			"SELECT 1 FROM stock_ledger WHERE product_id = $1 AND warehouse_id = $2 FOR UPDATE",
			k.ProductID, k.WarehouseID); err != nil {
			return fmt.Errorf("failed to lock stock %s: %w", k, err)
		}
	}
	return nil
}

func (t *tx) GetStock(ctx context.Context, key core.LedgerKey) (core.StockLedgerEntry, error) {
	return getStock(ctx, t.q, key)
}

func (t *tx) PutStock(ctx context.Context, e core.StockLedgerEntry) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stock_ledger (product_id, warehouse_id, quantity_on_hand, quantity_reserved, last_restock_date, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (product_id, warehouse_id) DO UPDATE SET
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			quantity_reserved = EXCLUDED.quantity_reserved,
			last_restock_date = EXCLUDED.last_restock_date,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
	`, e.ProductID, e.WarehouseID, e.QuantityOnHand, e.QuantityReserved, e.LastRestockDate, e.UpdatedAt, e.Version)
	if err != nil {
		return fmt.Errorf("failed to write stock %s: %w", e.LedgerKey, err)
	}
	return nil
}

func (t *tx) AppendMovement(ctx context.Context, m *core.StockMovement) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO stock_movements (product_id, warehouse_id, movement_type, quantity, reserved_delta,
			reference_type, reference_id, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, m.ProductID, m.WarehouseID, string(m.MovementType), m.Quantity, m.ReservedDelta,
		string(m.ReferenceType), m.ReferenceID, m.Notes, m.CreatedBy, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to record movement: %w", err)
	}
	return nil
}

// NextSequence increments the (prefix, year) counter under its row lock.
func (t *tx) ListMovements(ctx context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	return listMovements(ctx, t.q, f)
}

func (t *tx) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	var n int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO order_sequences (prefix, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET last_number = order_sequences.last_number + 1
		RETURNING last_number
	`, prefix, year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s-%d sequence: %w", prefix, year, err)
	}
	return n, nil
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (t *tx) InsertPurchaseOrder(ctx context.Context, po *core.PurchaseOrder) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_number, supplier_id, warehouse_id, order_date, expected_date,
			status, total_amount, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, po.PONumber, po.SupplierID, po.WarehouseID, po.OrderDate, po.ExpectedDate,
		string(po.Status), po.TotalAmount, po.Notes, po.CreatedBy, po.CreatedAt, po.UpdatedAt).Scan(&po.ID)
	if err != nil {
		return fmt.Errorf("failed to insert purchase order %s: %w", po.PONumber, err)
	}
	for i := range po.Items {
		it := &po.Items[i]
		it.PurchaseOrderID = po.ID
		err := t.q.QueryRow(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity, unit_cost, received_quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, po.ID, it.ProductID, it.Quantity, it.UnitCost, it.ReceivedQuantity).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert purchase order line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *tx) LockPurchaseOrder(ctx context.Context, id int64) (*core.PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, t.q, id, true)
}

func (t *tx) UpdatePurchaseOrder(ctx context.Context, po *core.PurchaseOrder) error {
	if _, err := t.q.Exec(ctx,
		"UPDATE purchase_orders SET status = $2, updated_at = $3 WHERE id = $1",
		po.ID, string(po.Status), po.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update purchase order %d: %w", po.ID, err)
	}
	for _, it := range po.Items {
		if _, err := t.q.Exec(ctx,
			"UPDATE purchase_order_items SET received_quantity = $2 WHERE id = $1",
			it.ID, it.ReceivedQuantity); err != nil {
			return fmt.Errorf("failed to update purchase order line %d: %w", it.ID, err)
		}
	}
	return nil
}

// ── Sales orders ──────────────────────────────────────────────────────────────

func (t *tx) InsertSalesOrder(ctx context.Context, so *core.SalesOrder) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO sales_orders (so_number, customer_id, warehouse_id, order_date, required_date, status,
			total_amount, shipping_address, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, so.SONumber, so.CustomerID, so.WarehouseID, so.OrderDate, so.RequiredDate, string(so.Status),
		so.TotalAmount, so.ShippingAddress, so.Notes, so.CreatedBy, so.CreatedAt, so.UpdatedAt).Scan(&so.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sales order %s: %w", so.SONumber, err)
	}
	for i := range so.Items {
		it := &so.Items[i]
		it.SalesOrderID = so.ID
		err := t.q.QueryRow(ctx, `
			INSERT INTO sales_order_items (sales_order_id, product_id, quantity, unit_price, discount)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, so.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Discount).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("failed to insert sales order line %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *tx) LockSalesOrder(ctx context.Context, id int64) (*core.SalesOrder, error) {
	return loadSalesOrder(ctx, t.q, id, true)
}

func (t *tx) UpdateSalesOrderStatus(ctx context.Context, so *core.SalesOrder) error {
	if _, err := t.q.Exec(ctx,
		"UPDATE sales_orders SET status = $2, updated_at = $3 WHERE id = $1",
		so.ID, string(so.Status), so.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update sales order %d: %w", so.ID, err)
	}
	return nil
}

func (t *tx) InsertShipment(ctx context.Context, sh *core.Shipment) error {
	err := t.q.QueryRow(ctx, `
		INSERT INTO shipments (sales_order_id, carrier, tracking_number, status, shipment_date, delivery_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, sh.SalesOrderID, sh.Carrier, sh.TrackingNumber, string(sh.Status), sh.ShipmentDate, sh.DeliveryDate, sh.CreatedBy).Scan(&sh.ID)
	if err != nil {
		return fmt.Errorf("failed to insert shipment for sales order %d: %w", sh.SalesOrderID, err)
	}
	return nil
}

func (t *tx) UpdateShipment(ctx context.Context, sh *core.Shipment) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE shipments SET carrier = $2, tracking_number = $3, status = $4, shipment_date = $5, delivery_date = $6
		WHERE id = $1
	`, sh.ID, sh.Carrier, sh.TrackingNumber, string(sh.Status), sh.ShipmentDate, sh.DeliveryDate)
	if err != nil {
		return fmt.Errorf("failed to update shipment %d: %w", sh.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NewNotFoundError("shipment", sh.ID)
	}
	return nil
}
