package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"warehouse-ledger/internal/core"

	"github.com/jackc/pgx/v5"
)

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) limit(n int) string {
	if n <= 0 {
		return ""
	}
	w.args = append(w.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(w.args))
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *Store) GetStock(ctx context.Context, key core.LedgerKey) (core.StockLedgerEntry, error) {
	return getStock(ctx, s.pool, key)
}

func (s *Store) ListStock(ctx context.Context, warehouseID int64) ([]core.StockLedgerEntry, error) {
	var w where
	if warehouseID != 0 {
		w.add("warehouse_id = $%d", warehouseID)
	}
	rows, err := s.pool.Query(ctx,
		"SELECT "+stockColumns+" FROM stock_ledger"+w.String()+" ORDER BY product_id, warehouse_id", w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock: %w", err)
	}
	defer rows.Close()

	var out []core.StockLedgerEntry
	for rows.Next() {
		e, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListMovements returns matching movements, newest first.
func (s *Store) ListMovements(ctx context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	return listMovements(ctx, s.pool, f)
}

func listMovements(ctx context.Context, q querier, f core.MovementFilter) ([]core.StockMovement, error) {
	var w where
	if f.ProductID != 0 {
		w.add("product_id = $%d", f.ProductID)
	}
	if f.WarehouseID != 0 {
		w.add("warehouse_id = $%d", f.WarehouseID)
	}
	if f.ReferenceType != "" {
		w.add("reference_type = $%d", string(f.ReferenceType))
	}
	if f.ReferenceID != "" {
		w.add("reference_id = $%d", f.ReferenceID)
	}
	query := `SELECT id, product_id, warehouse_id, movement_type, quantity, reserved_delta,
		reference_type, reference_id, notes, created_by, created_at
		FROM stock_movements` + w.String() + " ORDER BY id DESC" + w.limit(f.Limit)

	rows, err := q.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		var m core.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.MovementType, &m.Quantity, &m.ReservedDelta,
			&m.ReferenceType, &m.ReferenceID, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ── Purchase orders ───────────────────────────────────────────────────────────

const poColumns = `id, po_number, supplier_id, warehouse_id, order_date, expected_date, status,
	total_amount, notes, created_by, created_at, updated_at`

func scanPurchaseOrder(row pgx.Row) (core.PurchaseOrder, error) {
	var po core.PurchaseOrder
	err := row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.WarehouseID, &po.OrderDate, &po.ExpectedDate,
		&po.Status, &po.TotalAmount, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func loadPurchaseOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*core.PurchaseOrder, error) {
	query := "SELECT " + poColumns + " FROM purchase_orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	po, err := scanPurchaseOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("purchase order", id)
		}
		return nil, fmt.Errorf("failed to load purchase order %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost, received_quantity
		FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it core.PurchaseOrderItem
		if err := rows.Scan(&it.ID, &it.PurchaseOrderID, &it.ProductID, &it.Quantity, &it.UnitCost, &it.ReceivedQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		po.Items = append(po.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read purchase order lines: %w", err)
	}
	return &po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id int64) (*core.PurchaseOrder, error) {
	return loadPurchaseOrder(ctx, s.pool, id, false)
}

// ListPurchaseOrders returns headers without items, newest first.
func (s *Store) ListPurchaseOrders(ctx context.Context, f core.OrderFilter) ([]core.PurchaseOrder, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.PartyID != 0 {
		w.add("supplier_id = $%d", f.PartyID)
	}
	query := "SELECT " + poColumns + " FROM purchase_orders" + w.String() + " ORDER BY id DESC" + w.limit(f.Limit)
	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var out []core.PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

// ── Sales orders ──────────────────────────────────────────────────────────────

const soColumns = `id, so_number, customer_id, warehouse_id, order_date, required_date, status,
	total_amount, shipping_address, notes, created_by, created_at, updated_at`

func scanSalesOrder(row pgx.Row) (core.SalesOrder, error) {
	var so core.SalesOrder
	err := row.Scan(&so.ID, &so.SONumber, &so.CustomerID, &so.WarehouseID, &so.OrderDate, &so.RequiredDate,
		&so.Status, &so.TotalAmount, &so.ShippingAddress, &so.Notes, &so.CreatedBy, &so.CreatedAt, &so.UpdatedAt)
	return so, err
}

func loadSalesOrder(ctx context.Context, q querier, id int64, forUpdate bool) (*core.SalesOrder, error) {
	query := "SELECT " + soColumns + " FROM sales_orders WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	so, err := scanSalesOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.NewNotFoundError("sales order", id)
		}
		return nil, fmt.Errorf("failed to load sales order %d: %w", id, err)
	}

	items, err := q.Query(ctx, `
		SELECT id, sales_order_id, product_id, quantity, unit_price, discount
		FROM sales_order_items WHERE sales_order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales order lines: %w", err)
	}
	for items.Next() {
		var it core.SalesOrderItem
		if err := items.Scan(&it.ID, &it.SalesOrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Discount); err != nil {
			items.Close()
			return nil, fmt.Errorf("failed to scan sales order line: %w", err)
		}
		so.Items = append(so.Items, it)
	}
	items.Close()
	if err := items.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sales order lines: %w", err)
	}

	shipments, err := q.Query(ctx, `
		SELECT id, sales_order_id, carrier, tracking_number, status, shipment_date, delivery_date, created_by
		FROM shipments WHERE sales_order_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query shipments: %w", err)
	}
	defer shipments.Close()
	for shipments.Next() {
		var sh core.Shipment
		if err := shipments.Scan(&sh.ID, &sh.SalesOrderID, &sh.Carrier, &sh.TrackingNumber, &sh.Status,
			&sh.ShipmentDate, &sh.DeliveryDate, &sh.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		so.Shipments = append(so.Shipments, sh)
	}
	if err := shipments.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shipments: %w", err)
	}
	return &so, nil
}

func (s *Store) GetSalesOrder(ctx context.Context, id int64) (*core.SalesOrder, error) {
	return loadSalesOrder(ctx, s.pool, id, false)
}

// ListSalesOrders returns headers without items or shipments, newest first.
func (s *Store) ListSalesOrders(ctx context.Context, f core.OrderFilter) ([]core.SalesOrder, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	if f.PartyID != 0 {
		w.add("customer_id = $%d", f.PartyID)
	}
	query := "SELECT " + soColumns + " FROM sales_orders" + w.String() + " ORDER BY id DESC" + w.limit(f.Limit)
	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales orders: %w", err)
	}
	defer rows.Close()

	var out []core.SalesOrder
	for rows.Next() {
		so, err := scanSalesOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sales order: %w", err)
		}
		out = append(out, so)
	}
	return out, rows.Err()
}
