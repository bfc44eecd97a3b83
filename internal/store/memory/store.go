// Package memory is an in-process core.Store. Units of work buffer their writes and
// apply them under one write lock at commit; per-key locks serialize units of work
// that touch the same stock key, order or sequence counter.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"warehouse-ledger/internal/core"
)

var (
	_ core.Store      = (*Store)(nil)
	_ core.Catalog    = (*Store)(nil)
	_ core.Facilities = (*Store)(nil)
	_ core.Tx         = (*tx)(nil)
)

type seqKey struct {
	prefix string
	year   int
}

type Store struct {
	mu         sync.RWMutex
	products   map[int64]core.Product
	warehouses map[int64]core.Warehouse
	stock      map[core.LedgerKey]core.StockLedgerEntry
	movements  []core.StockMovement
	sequences  map[seqKey]int64
	pos        map[int64]*core.PurchaseOrder
	sos        map[int64]*core.SalesOrder

	locks *keyLocks

	movementID atomic.Int64
	poID       atomic.Int64
	poItemID   atomic.Int64
	soID       atomic.Int64
	soItemID   atomic.Int64
	shipmentID atomic.Int64
}

func New() *Store {
	return &Store{
		products:   make(map[int64]core.Product),
		warehouses: make(map[int64]core.Warehouse),
		stock:      make(map[core.LedgerKey]core.StockLedgerEntry),
		sequences:  make(map[seqKey]int64),
		pos:        make(map[int64]*core.PurchaseOrder),
		sos:        make(map[int64]*core.SalesOrder),
		locks:      newKeyLocks(),
	}
}

// InTx runs fn against a buffered tx. Nothing is visible to other readers until fn
// returns nil and ctx is still live, at which point every buffered write lands at once.
func (s *Store) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s)
	defer t.releaseAll()
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.commit()
	return nil
}

// ── Catalog / Facilities ──────────────────────────────────────────────────────

// AddProduct registers or replaces a product.
func (s *Store) AddProduct(p core.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *Store) AddWarehouse(w core.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses[w.ID] = w
}

func (s *Store) ProductByID(_ context.Context, id int64) (*core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, core.NewNotFoundError("product", id)
	}
	return &p, nil
}

func (s *Store) ProductBySKU(_ context.Context, sku string) (*core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, core.NewNotFoundError("product", sku)
}

// ListProducts returns active products ordered by SKU.
func (s *Store) ListProducts(_ context.Context) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Product
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b core.Product) int { return cmp.Compare(a.SKU, b.SKU) })
	return out, nil
}

func (s *Store) WarehouseByID(_ context.Context, id int64) (*core.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warehouses[id]
	if !ok {
		return nil, core.NewNotFoundError("warehouse", id)
	}
	return &w, nil
}

// ── Reader ────────────────────────────────────────────────────────────────────

func (s *Store) GetStock(_ context.Context, key core.LedgerKey) (core.StockLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.stock[key]
	if !ok {
		return core.StockLedgerEntry{LedgerKey: key}, nil
	}
	return e, nil
}

func (s *Store) ListStock(_ context.Context, warehouseID int64) ([]core.StockLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.StockLedgerEntry
	for k, e := range s.stock {
		if warehouseID == 0 || k.WarehouseID == warehouseID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b core.StockLedgerEntry) int { return a.LedgerKey.Compare(b.LedgerKey) })
	return out, nil
}

// ListMovements returns matching movements, newest first.
func (s *Store) ListMovements(_ context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterMovements(nil, s.movements, f), nil
}

// filterMovements appends the matches in ms to out, newest first, up to f.Limit in total.
func filterMovements(out, ms []core.StockMovement, f core.MovementFilter) []core.StockMovement {
	for i := len(ms) - 1; i >= 0; i-- {
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
		m := ms[i]
		if f.ProductID != 0 && m.ProductID != f.ProductID ||
			f.WarehouseID != 0 && m.WarehouseID != f.WarehouseID ||
			f.ReferenceType != "" && m.ReferenceType != f.ReferenceType ||
			f.ReferenceID != "" && m.ReferenceID != f.ReferenceID {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Store) GetPurchaseOrder(_ context.Context, id int64) (*core.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	po, ok := s.pos[id]
	if !ok {
		return nil, core.NewNotFoundError("purchase order", id)
	}
	return po.Clone(), nil
}

// ListPurchaseOrders returns headers without items, newest first.
func (s *Store) ListPurchaseOrders(_ context.Context, f core.OrderFilter) ([]core.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.PurchaseOrder
	for _, po := range s.pos {
		if f.Status != "" && string(po.Status) != f.Status || f.PartyID != 0 && po.SupplierID != f.PartyID {
			continue
		}
		h := *po.Clone()
		h.Items = nil
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b core.PurchaseOrder) int { return cmp.Compare(b.ID, a.ID) })
	return limit(out, f.Limit), nil
}

func (s *Store) GetSalesOrder(_ context.Context, id int64) (*core.SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	so, ok := s.sos[id]
	if !ok {
		return nil, core.NewNotFoundError("sales order", id)
	}
	return so.Clone(), nil
}

// ListSalesOrders returns headers without items or shipments, newest first.
func (s *Store) ListSalesOrders(_ context.Context, f core.OrderFilter) ([]core.SalesOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.SalesOrder
	for _, so := range s.sos {
		if f.Status != "" && string(so.Status) != f.Status || f.PartyID != 0 && so.CustomerID != f.PartyID {
			continue
		}
		h := *so.Clone()
		h.Items, h.Shipments = nil, nil
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b core.SalesOrder) int { return cmp.Compare(b.ID, a.ID) })
	return limit(out, f.Limit), nil
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
