package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdjustInput struct {
	ProductID   int64  `json:"product_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Quantity    int64  `json:"quantity"` // signed
	Reason      string `json:"reason"`
	AdjustedBy  string `json:"adjusted_by"`
}

type TransferInput struct {
	ProductID       int64  `json:"product_id"`
	FromWarehouseID int64  `json:"from_warehouse_id"`
	ToWarehouseID   int64  `json:"to_warehouse_id"`
	Quantity        int64  `json:"quantity"`
	Notes           string `json:"notes,omitempty"`
	TransferredBy   string `json:"transferred_by"`
}

// TransferResult holds both sides of a transfer. ReferenceID links the paired movements.
type TransferResult struct {
	ReferenceID string           `json:"reference_id"`
	From        StockLedgerEntry `json:"from"`
	To          StockLedgerEntry `json:"to"`
}

// InventoryService validates and applies stock operations through the Ledger.
// Each operation runs in its own unit of work and publishes its events after commit.
type InventoryService interface {
	// GetEntry returns the committed entry, or a zero entry if the key was never written.
	GetEntry(ctx context.Context, productID, warehouseID int64) (StockLedgerEntry, error)

	// Adjust changes on-hand by a signed quantity. Reducing on-hand below reserved fails.
	Adjust(ctx context.Context, in AdjustInput) (StockLedgerEntry, error)

	// Transfer moves available stock between two warehouses. Both sides commit or neither does.
	// Reserved stock at the source is not transferable.
	Transfer(ctx context.Context, in TransferInput) (*TransferResult, error)

	Reserve(ctx context.Context, productID, warehouseID, qty int64) (StockLedgerEntry, error)
	Release(ctx context.Context, productID, warehouseID, qty int64) (StockLedgerEntry, error)
	Receive(ctx context.Context, productID, warehouseID, qty int64, referenceID string) (StockLedgerEntry, error)
	// Ship removes stock and consumes the same quantity of reservation.
	Ship(ctx context.Context, productID, warehouseID, qty int64, referenceID string) (StockLedgerEntry, error)

	// ListStock returns stock levels joined with catalog data, optionally only low-stock rows.
	ListStock(ctx context.Context, filter StockFilter) ([]StockLevel, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
	// Reconcile folds the movement log of one key and compares it to the ledger entry.
	Reconcile(ctx context.Context, productID, warehouseID int64) (*Reconciliation, error)
}

type inventoryService struct {
	Deps
	ledger *Ledger
}

func NewInventoryService(deps Deps) InventoryService {
	deps = deps.withDefaults()
	return &inventoryService{Deps: deps, ledger: NewLedger(deps.Now)}
}

// ── TX-scoped operations ──────────────────────────────────────────────────────
// Shared with the order services so order state and stock commit together.

func reserveTx(ctx context.Context, cs *changeSet, l *Ledger, tx Tx, key LedgerKey, qty int64, ref ReferenceType, refID, actor string) (StockLedgerEntry, error) {
	return cs.apply(ctx, l, tx, key, 0, qty, StockMovement{
		MovementType: MovementReserve, ReferenceType: ref, ReferenceID: refID, CreatedBy: actor,
	})
}

func releaseTx(ctx context.Context, cs *changeSet, l *Ledger, tx Tx, key LedgerKey, qty int64, ref ReferenceType, refID, actor string) (StockLedgerEntry, error) {
	return cs.apply(ctx, l, tx, key, 0, -qty, StockMovement{
		MovementType: MovementRelease, ReferenceType: ref, ReferenceID: refID, CreatedBy: actor,
	})
}

func receiveTx(ctx context.Context, cs *changeSet, l *Ledger, tx Tx, key LedgerKey, qty int64, refID, actor string) (StockLedgerEntry, error) {
	return cs.apply(ctx, l, tx, key, qty, 0, StockMovement{
		MovementType: MovementIn, ReferenceType: RefPurchaseOrder, ReferenceID: refID, CreatedBy: actor,
	})
}

func shipTx(ctx context.Context, cs *changeSet, l *Ledger, tx Tx, key LedgerKey, qty int64, refID, actor string) (StockLedgerEntry, error) {
	return cs.apply(ctx, l, tx, key, -qty, -qty, StockMovement{
		MovementType: MovementOut, ReferenceType: RefSalesOrder, ReferenceID: refID, CreatedBy: actor,
	})
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *inventoryService) GetEntry(ctx context.Context, productID, warehouseID int64) (StockLedgerEntry, error) {
	return s.ledger.GetEntry(ctx, s.Store, LedgerKey{ProductID: productID, WarehouseID: warehouseID})
}

func (s *inventoryService) Adjust(ctx context.Context, in AdjustInput) (StockLedgerEntry, error) {
	if in.Quantity == 0 {
		return StockLedgerEntry{}, NewValidationError("adjustment quantity must be non-zero")
	}
	if err := s.requireKey(ctx, in.ProductID, in.WarehouseID); err != nil {
		return StockLedgerEntry{}, err
	}
	key := LedgerKey{ProductID: in.ProductID, WarehouseID: in.WarehouseID}
	actor := actorOr(ctx, in.AdjustedBy)

	var cs changeSet
	var entry StockLedgerEntry
	err := runTx(ctx, s.Store, "adjust inventory", func(tx Tx) error {
		cs.reset()
		var err error
		entry, err = cs.apply(ctx, s.ledger, tx, key, in.Quantity, 0, StockMovement{
			MovementType:  MovementAdjustment,
			ReferenceType: RefManual,
			Notes:         in.Reason,
			CreatedBy:     actor,
		})
		return err
	})
	if err != nil {
		return StockLedgerEntry{}, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("inventory adjusted",
		zap.Stringer("key", key), zap.Int64("delta", in.Quantity),
		zap.Int64("on_hand", entry.QuantityOnHand), zap.String("actor", actor))
	return entry, nil
}

func (s *inventoryService) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if in.Quantity <= 0 {
		return nil, NewValidationError("transfer quantity must be positive, got %d", in.Quantity)
	}
	if in.FromWarehouseID == in.ToWarehouseID {
		return nil, NewValidationError("source and destination warehouse must differ")
	}
	if err := s.requireKey(ctx, in.ProductID, in.FromWarehouseID); err != nil {
		return nil, err
	}
	if _, err := s.requireWarehouse(ctx, in.ToWarehouseID); err != nil {
		return nil, err
	}
	from := LedgerKey{ProductID: in.ProductID, WarehouseID: in.FromWarehouseID}
	to := LedgerKey{ProductID: in.ProductID, WarehouseID: in.ToWarehouseID}
	actor := actorOr(ctx, in.TransferredBy)
	res := &TransferResult{ReferenceID: uuid.NewString()}

	var cs changeSet
	err := runTx(ctx, s.Store, "transfer stock", func(tx Tx) error {
		cs.reset()
		if err := tx.LockStock(ctx, from, to); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		src, err := tx.GetStock(ctx, from)
		if err != nil {
			return fmt.Errorf("failed to read stock %s: %w", from, err)
		}
		// Reserved units at the source are not transferable.
		if src.Available() < in.Quantity {
			return &InsufficientStockError{Key: from, OnHand: src.QuantityOnHand, Reserved: src.QuantityReserved, Requested: in.Quantity}
		}
		mv := StockMovement{MovementType: MovementTransfer, ReferenceType: RefTransfer, ReferenceID: res.ReferenceID, Notes: in.Notes, CreatedBy: actor}
		if res.From, err = cs.apply(ctx, s.ledger, tx, from, -in.Quantity, 0, mv); err != nil {
			return err
		}
		res.To, err = cs.apply(ctx, s.ledger, tx, to, in.Quantity, 0, mv)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("stock transferred",
		zap.Int64("product_id", in.ProductID), zap.Int64("from", in.FromWarehouseID),
		zap.Int64("to", in.ToWarehouseID), zap.Int64("qty", in.Quantity),
		zap.String("reference_id", res.ReferenceID), zap.String("actor", actor))
	return res, nil
}

func (s *inventoryService) Reserve(ctx context.Context, productID, warehouseID, qty int64) (StockLedgerEntry, error) {
	return s.single(ctx, "reserve stock", productID, warehouseID, qty,
		func(cs *changeSet, tx Tx, key LedgerKey, actor string) (StockLedgerEntry, error) {
			return reserveTx(ctx, cs, s.ledger, tx, key, qty, RefManual, "", actor)
		})
}

func (s *inventoryService) Release(ctx context.Context, productID, warehouseID, qty int64) (StockLedgerEntry, error) {
	return s.single(ctx, "release stock", productID, warehouseID, qty,
		func(cs *changeSet, tx Tx, key LedgerKey, actor string) (StockLedgerEntry, error) {
			return releaseTx(ctx, cs, s.ledger, tx, key, qty, RefManual, "", actor)
		})
}

func (s *inventoryService) Receive(ctx context.Context, productID, warehouseID, qty int64, referenceID string) (StockLedgerEntry, error) {
	return s.single(ctx, "receive stock", productID, warehouseID, qty,
		func(cs *changeSet, tx Tx, key LedgerKey, actor string) (StockLedgerEntry, error) {
			return receiveTx(ctx, cs, s.ledger, tx, key, qty, referenceID, actor)
		})
}

func (s *inventoryService) Ship(ctx context.Context, productID, warehouseID, qty int64, referenceID string) (StockLedgerEntry, error) {
	return s.single(ctx, "ship stock", productID, warehouseID, qty,
		func(cs *changeSet, tx Tx, key LedgerKey, actor string) (StockLedgerEntry, error) {
			return shipTx(ctx, cs, s.ledger, tx, key, qty, referenceID, actor)
		})
}

// single runs a one-key operation with a positive quantity in its own unit of work.
func (s *inventoryService) single(ctx context.Context, op string, productID, warehouseID, qty int64,
	fn func(cs *changeSet, tx Tx, key LedgerKey, actor string) (StockLedgerEntry, error)) (StockLedgerEntry, error) {

	if qty <= 0 {
		return StockLedgerEntry{}, NewValidationError("%s: quantity must be positive, got %d", op, qty)
	}
	if err := s.requireKey(ctx, productID, warehouseID); err != nil {
		return StockLedgerEntry{}, err
	}
	key := LedgerKey{ProductID: productID, WarehouseID: warehouseID}
	actor := ActorFromContext(ctx)

	var cs changeSet
	var entry StockLedgerEntry
	err := runTx(ctx, s.Store, op, func(tx Tx) error {
		cs.reset()
		var err error
		entry, err = fn(&cs, tx, key, actor)
		return err
	})
	if err != nil {
		return StockLedgerEntry{}, err
	}
	s.committed(ctx, &cs)
	s.Logger.Debug(op, zap.Stringer("key", key), zap.Int64("qty", qty), zap.String("actor", actor))
	return entry, nil
}

func (s *inventoryService) requireKey(ctx context.Context, productID, warehouseID int64) error {
	if _, err := s.requireProduct(ctx, productID); err != nil {
		return err
	}
	_, err := s.requireWarehouse(ctx, warehouseID)
	return err
}

// ── Read views ────────────────────────────────────────────────────────────────

func (s *inventoryService) ListStock(ctx context.Context, filter StockFilter) ([]StockLevel, error) {
	entries, err := s.Store.ListStock(ctx, filter.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	products := make(map[int64]*Product)
	warehouses := make(map[int64]*Warehouse)

	levels := make([]StockLevel, 0, len(entries))
	for _, e := range entries {
		p, ok := products[e.ProductID]
		if !ok {
			if p, err = s.Catalog.ProductByID(ctx, e.ProductID); err != nil {
				return nil, err
			}
			products[e.ProductID] = p
		}
		w, ok := warehouses[e.WarehouseID]
		if !ok {
			if w, err = s.Facilities.WarehouseByID(ctx, e.WarehouseID); err != nil {
				return nil, err
			}
			warehouses[e.WarehouseID] = w
		}

		lvl := StockLevel{
			StockLedgerEntry: e,
			SKU:              p.SKU,
			ProductName:      p.Name,
			WarehouseName:    w.Name,
			AvailableQty:     e.Available(),
			ReorderLevel:     p.ReorderLevel,
			StockValue:       decimal.NewFromInt(e.QuantityOnHand).Mul(p.CostPrice),
			IsLowStock:       e.QuantityOnHand <= p.ReorderLevel,
		}
		if lvl.IsLowStock {
			lvl.SuggestedReorder = max(p.ReorderQuantity, p.ReorderLevel-e.QuantityOnHand)
		}
		if filter.LowStockOnly && !lvl.IsLowStock {
			continue
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	ms, err := s.Store.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return ms, nil
}

func (s *inventoryService) Reconcile(ctx context.Context, productID, warehouseID int64) (*Reconciliation, error) {
	key := LedgerKey{ProductID: productID, WarehouseID: warehouseID}
	var entry StockLedgerEntry
	var ms []StockMovement
	// Holding the key lock keeps writers out between the two reads.
	err := runTx(ctx, s.Store, "reconcile stock", func(tx Tx) error {
		if err := tx.LockStock(ctx, key); err != nil {
			return fmt.Errorf("failed to lock stock %s: %w", key, err)
		}
		var err error
		if entry, err = s.ledger.GetEntry(ctx, tx, key); err != nil {
			return err
		}
		if ms, err = tx.ListMovements(ctx, MovementFilter{ProductID: productID, WarehouseID: warehouseID}); err != nil {
			return fmt.Errorf("failed to list movements: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	onHand, reserved := FoldMovements(ms)
	return &Reconciliation{
		Key:            key,
		LedgerOnHand:   entry.QuantityOnHand,
		LedgerReserved: entry.QuantityReserved,
		FoldedOnHand:   onHand,
		FoldedReserved: reserved,
		MovementCount:  len(ms),
		Consistent:     onHand == entry.QuantityOnHand && reserved == entry.QuantityReserved,
	}, nil
}
