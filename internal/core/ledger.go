package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Ledger is the only writer of stock entries. Every change it applies is validated
// against 0 <= reserved <= on-hand and recorded as a StockMovement in the same tx.
type Ledger struct {
	now Clock
}

func NewLedger(now Clock) *Ledger {
	if now == nil {
		now = defaultClock
	}
	return &Ledger{now: now}
}

// StockGetter is satisfied by both Reader and Tx.
type StockGetter interface {
	GetStock(ctx context.Context, key LedgerKey) (StockLedgerEntry, error)
}

// GetEntry returns the entry for key as r sees it, or a zero entry when the key was never written.
func (l *Ledger) GetEntry(ctx context.Context, r StockGetter, key LedgerKey) (StockLedgerEntry, error) {
	e, err := r.GetStock(ctx, key)
	if err != nil {
		return StockLedgerEntry{}, fmt.Errorf("failed to read stock %s: %w", key, err)
	}
	e.LedgerKey = key
	return e, nil
}

// ApplyDelta applies the deltas to key inside tx and appends m with its quantities,
// key and timestamp filled in. The key is locked for the rest of tx.
// Returns *InsufficientStockError, with nothing written, if the result would break the entry invariant.
func (l *Ledger) ApplyDelta(ctx context.Context, tx Tx, key LedgerKey, onHandDelta, reservedDelta int64, m *StockMovement) (StockLedgerEntry, error) {
	if err := tx.LockStock(ctx, key); err != nil {
		return StockLedgerEntry{}, fmt.Errorf("failed to lock stock %s: %w", key, err)
	}
	cur, err := tx.GetStock(ctx, key)
	if err != nil {
		return StockLedgerEntry{}, fmt.Errorf("failed to read stock %s: %w", key, err)
	}
	cur.LedgerKey = key

	next := cur
	next.QuantityOnHand += onHandDelta
	next.QuantityReserved += reservedDelta
	if next.QuantityOnHand < 0 || next.QuantityReserved < 0 || next.QuantityReserved > next.QuantityOnHand {
		return cur, &InsufficientStockError{
			Key:       key,
			OnHand:    cur.QuantityOnHand,
			Reserved:  cur.QuantityReserved,
			Requested: max(abs(onHandDelta), abs(reservedDelta)),
		}
	}

	now := l.now().UTC()
	next.Version++
	next.UpdatedAt = now
	if onHandDelta > 0 {
		next.LastRestockDate = &now
	}
	if err := tx.PutStock(ctx, next); err != nil {
		return cur, fmt.Errorf("failed to write stock %s: %w", key, err)
	}

	m.ProductID = key.ProductID
	m.WarehouseID = key.WarehouseID
	m.Quantity = onHandDelta
	m.ReservedDelta = reservedDelta
	m.CreatedAt = now
	if err := tx.AppendMovement(ctx, m); err != nil {
		return cur, fmt.Errorf("failed to append movement for %s: %w", key, err)
	}
	return next, nil
}

// FoldMovements replays movements into on-hand and reserved totals.
func FoldMovements(movements []StockMovement) (onHand, reserved int64) {
	for _, m := range movements {
		onHand += m.Quantity
		reserved += m.ReservedDelta
	}
	return onHand, reserved
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

type stockChange struct {
	before   StockLedgerEntry
	after    StockLedgerEntry
	movement StockMovement
}

// changeSet collects what one tx attempt did so it can be published after commit.
type changeSet struct {
	stock  []stockChange
	orders []OrderStatusChangedEvent
}

// reset clears state left by a previous attempt of the same unit of work.
func (c *changeSet) reset() {
	c.stock = c.stock[:0]
	c.orders = c.orders[:0]
}

func (c *changeSet) apply(ctx context.Context, l *Ledger, tx Tx, key LedgerKey, onHandDelta, reservedDelta int64, m StockMovement) (StockLedgerEntry, error) {
	after, err := l.ApplyDelta(ctx, tx, key, onHandDelta, reservedDelta, &m)
	if err != nil {
		return after, err
	}
	before := after
	before.QuantityOnHand -= onHandDelta
	before.QuantityReserved -= reservedDelta
	c.stock = append(c.stock, stockChange{before: before, after: after, movement: m})
	return after, nil
}

func (c *changeSet) orderStatus(e OrderStatusChangedEvent) {
	c.orders = append(c.orders, e)
}

// events builds the committed events. Low-stock checks compare the first "before"
// and last "after" seen per key, so a key touched twice in one tx alerts at most once.
func (c *changeSet) events(ctx context.Context, catalog Catalog, log *zap.Logger) []Event {
	var out []Event
	first := make(map[LedgerKey]StockLedgerEntry)
	last := make(map[LedgerKey]StockLedgerEntry)
	var order []LedgerKey
	for _, ch := range c.stock {
		m := ch.movement
		out = append(out, StockChangedEvent{
			LedgerKey:     ch.after.LedgerKey,
			MovementID:    m.ID,
			MovementType:  m.MovementType,
			OnHandDelta:   m.Quantity,
			ReservedDelta: m.ReservedDelta,
			OnHand:        ch.after.QuantityOnHand,
			Reserved:      ch.after.QuantityReserved,
			ReferenceType: m.ReferenceType,
			ReferenceID:   m.ReferenceID,
			Actor:         m.CreatedBy,
			OccurredAt:    m.CreatedAt,
		})
		if _, seen := first[ch.after.LedgerKey]; !seen {
			first[ch.after.LedgerKey] = ch.before
			order = append(order, ch.after.LedgerKey)
		}
		last[ch.after.LedgerKey] = ch.after
	}
	for _, key := range order {
		before, after := first[key], last[key]
		if after.QuantityOnHand >= before.QuantityOnHand {
			continue
		}
		p, err := catalog.ProductByID(ctx, key.ProductID)
		if err != nil {
			log.Warn("low stock check skipped", zap.Stringer("key", key), zap.Error(err))
			continue
		}
		if before.QuantityOnHand > p.ReorderLevel && after.QuantityOnHand <= p.ReorderLevel {
			out = append(out, LowStockEvent{
				LedgerKey:       key,
				SKU:             p.SKU,
				OnHand:          after.QuantityOnHand,
				Available:       after.Available(),
				ReorderLevel:    p.ReorderLevel,
				ReorderQuantity: p.ReorderQuantity,
				OccurredAt:      after.UpdatedAt,
			})
		}
	}
	for _, e := range c.orders {
		out = append(out, e)
	}
	return out
}
