package memory

import (
	"context"
	"fmt"
	"slices"

	"warehouse-ledger/internal/core"
)

// tx buffers writes until commit. Reads see the buffer first, then committed state.
type tx struct {
	s    *Store
	held []string
	set  map[string]bool

	stock     map[core.LedgerKey]core.StockLedgerEntry
	movements []core.StockMovement
	seqs      map[seqKey]int64
	pos       map[int64]*core.PurchaseOrder
	sos       map[int64]*core.SalesOrder
}

func newTx(s *Store) *tx {
	return &tx{
		s:     s,
		set:   make(map[string]bool),
		stock: make(map[core.LedgerKey]core.StockLedgerEntry),
		seqs:  make(map[seqKey]int64),
		pos:   make(map[int64]*core.PurchaseOrder),
		sos:   make(map[int64]*core.SalesOrder),
	}
}

func (t *tx) lock(ctx context.Context, key string) error {
	if t.set[key] {
		return nil
	}
	if err := t.s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.set[key] = true
	t.held = append(t.held, key)
	return nil
}

func (t *tx) releaseAll() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.s.locks.release(t.held[i])
	}
	t.held, t.set = nil, nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for k, e := range t.stock {
		t.s.stock[k] = e
	}
	t.s.movements = append(t.s.movements, t.movements...)
	for k, v := range t.seqs {
		t.s.sequences[k] = v
	}
	for id, po := range t.pos {
		t.s.pos[id] = po
	}
	for id, so := range t.sos {
		t.s.sos[id] = so
	}
}

func stockLockKey(k core.LedgerKey) string { return "stock:" + k.String() }

// ── Stock ─────────────────────────────────────────────────────────────────────

func (t *tx) LockStock(ctx context.Context, keys ...core.LedgerKey) error {
	sorted := slices.Clone(keys)
	slices.SortFunc(sorted, core.LedgerKey.Compare)
	for _, k := range slices.Compact(sorted) {
		if err := t.lock(ctx, stockLockKey(k)); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) GetStock(ctx context.Context, key core.LedgerKey) (core.StockLedgerEntry, error) {
	if e, ok := t.stock[key]; ok {
		return e, nil
	}
	return t.s.GetStock(ctx, key)
}

func (t *tx) PutStock(_ context.Context, e core.StockLedgerEntry) error {
	if !t.set[stockLockKey(e.LedgerKey)] {
		return fmt.Errorf("stock %s written without holding its lock", e.LedgerKey)
	}
	t.stock[e.LedgerKey] = e
	return nil
}

func (t *tx) AppendMovement(_ context.Context, m *core.StockMovement) error {
	m.ID = t.s.movementID.Add(1)
	t.movements = append(t.movements, *m)
	return nil
}

func (t *tx) ListMovements(_ context.Context, f core.MovementFilter) ([]core.StockMovement, error) {
	out := filterMovements(nil, t.movements, f)
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return filterMovements(out, t.s.movements, f), nil
}

func (t *tx) NextSequence(ctx context.Context, prefix string, year int) (int64, error) {
	k := seqKey{prefix: prefix, year: year}
	if err := t.lock(ctx, fmt.Sprintf("seq:%s:%d", prefix, year)); err != nil {
		return 0, err
	}
	cur, ok := t.seqs[k]
	if !ok {
		t.s.mu.RLock()
		cur = t.s.sequences[k]
		t.s.mu.RUnlock()
	}
	t.seqs[k] = cur + 1
	return cur + 1, nil
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func poLockKey(id int64) string { return fmt.Sprintf("po:%d", id) }

func (t *tx) InsertPurchaseOrder(_ context.Context, po *core.PurchaseOrder) error {
	po.ID = t.s.poID.Add(1)
	for i := range po.Items {
		po.Items[i].ID = t.s.poItemID.Add(1)
		po.Items[i].PurchaseOrderID = po.ID
	}
	t.set[poLockKey(po.ID)] = true
	t.pos[po.ID] = po.Clone()
	return nil
}

func (t *tx) currentPO(id int64) (*core.PurchaseOrder, bool) {
	if po, ok := t.pos[id]; ok {
		return po, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	po, ok := t.s.pos[id]
	if !ok {
		return nil, false
	}
	return po.Clone(), true
}

func (t *tx) LockPurchaseOrder(ctx context.Context, id int64) (*core.PurchaseOrder, error) {
	if err := t.lock(ctx, poLockKey(id)); err != nil {
		return nil, err
	}
	po, ok := t.currentPO(id)
	if !ok {
		return nil, core.NewNotFoundError("purchase order", id)
	}
	return po.Clone(), nil
}

func (t *tx) UpdatePurchaseOrder(_ context.Context, po *core.PurchaseOrder) error {
	if !t.set[poLockKey(po.ID)] {
		return fmt.Errorf("purchase order %d written without holding its lock", po.ID)
	}
	cur, ok := t.currentPO(po.ID)
	if !ok {
		return core.NewNotFoundError("purchase order", po.ID)
	}
	cur.Status = po.Status
	cur.UpdatedAt = po.UpdatedAt
	for _, it := range po.Items {
		for i := range cur.Items {
			if cur.Items[i].ID == it.ID {
				cur.Items[i].ReceivedQuantity = it.ReceivedQuantity
			}
		}
	}
	t.pos[po.ID] = cur
	return nil
}

// ── Sales orders ──────────────────────────────────────────────────────────────

func soLockKey(id int64) string { return fmt.Sprintf("so:%d", id) }

func (t *tx) InsertSalesOrder(_ context.Context, so *core.SalesOrder) error {
	so.ID = t.s.soID.Add(1)
	for i := range so.Items {
		so.Items[i].ID = t.s.soItemID.Add(1)
		so.Items[i].SalesOrderID = so.ID
	}
	t.set[soLockKey(so.ID)] = true
	t.sos[so.ID] = so.Clone()
	return nil
}

func (t *tx) currentSO(id int64) (*core.SalesOrder, bool) {
	if so, ok := t.sos[id]; ok {
		return so, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	so, ok := t.s.sos[id]
	if !ok {
		return nil, false
	}
	return so.Clone(), true
}

func (t *tx) LockSalesOrder(ctx context.Context, id int64) (*core.SalesOrder, error) {
	if err := t.lock(ctx, soLockKey(id)); err != nil {
		return nil, err
	}
	so, ok := t.currentSO(id)
	if !ok {
		return nil, core.NewNotFoundError("sales order", id)
	}
	return so.Clone(), nil
}

// heldSO returns the buffered copy of a locked sales order for modification.
func (t *tx) heldSO(id int64) (*core.SalesOrder, error) {
	if !t.set[soLockKey(id)] {
		return nil, fmt.Errorf("sales order %d written without holding its lock", id)
	}
	cur, ok := t.currentSO(id)
	if !ok {
		return nil, core.NewNotFoundError("sales order", id)
	}
	t.sos[id] = cur
	return cur, nil
}

func (t *tx) UpdateSalesOrderStatus(_ context.Context, so *core.SalesOrder) error {
	cur, err := t.heldSO(so.ID)
	if err != nil {
		return err
	}
	cur.Status = so.Status
	cur.UpdatedAt = so.UpdatedAt
	return nil
}

func (t *tx) InsertShipment(_ context.Context, sh *core.Shipment) error {
	cur, err := t.heldSO(sh.SalesOrderID)
	if err != nil {
		return err
	}
	sh.ID = t.s.shipmentID.Add(1)
	cur.Shipments = append(cur.Shipments, *sh)
	return nil
}

func (t *tx) UpdateShipment(_ context.Context, sh *core.Shipment) error {
	cur, err := t.heldSO(sh.SalesOrderID)
	if err != nil {
		return err
	}
	for i := range cur.Shipments {
		if cur.Shipments[i].ID == sh.ID {
			cur.Shipments[i] = *sh
			return nil
		}
	}
	return core.NewNotFoundError("shipment", sh.ID)
}
