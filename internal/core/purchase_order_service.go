package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type purchaseOrderService struct {
	Deps
	ledger *Ledger
}

func NewPurchaseOrderService(deps Deps) PurchaseOrderService {
	deps = deps.withDefaults()
	return &purchaseOrderService{Deps: deps, ledger: NewLedger(deps.Now)}
}

func checkPOTransition(po *PurchaseOrder, action string) error {
	if slices.Contains(poTransitions[action], po.Status) {
		return nil
	}
	return &InvalidStateTransitionError{Entity: "purchase order", ID: po.ID, From: string(po.Status), Action: action}
}

func (s *purchaseOrderService) Create(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error) {
	var problems []string
	if in.SupplierID <= 0 {
		problems = append(problems, "supplier is required")
	}
	if len(in.Items) == 0 {
		problems = append(problems, "purchase order must have at least one item")
	}
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be positive, got %d", i+1, it.Quantity))
		}
		if it.UnitCost.IsNegative() {
			problems = append(problems, fmt.Sprintf("item %d: unit cost cannot be negative, got %s", i+1, it.UnitCost))
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	if _, err := s.requireWarehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}
	for _, it := range in.Items {
		if _, err := s.requireProduct(ctx, it.ProductID); err != nil {
			return nil, err
		}
	}

	now := s.Now().UTC()
	actor := actorOr(ctx, in.CreatedBy)
	total := decimal.Zero
	items := make([]PurchaseOrderItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = PurchaseOrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitCost: it.UnitCost}
		total = total.Add(items[i].LineTotal())
	}

	var cs changeSet
	var po *PurchaseOrder
	err := runTx(ctx, s.Store, "create purchase order", func(tx Tx) error {
		cs.reset()
		number, err := NextOrderNumber(ctx, tx, PurchaseOrderPrefix, now.Year())
		if err != nil {
			return err
		}
		po = &PurchaseOrder{
			PONumber:     number,
			SupplierID:   in.SupplierID,
			WarehouseID:  in.WarehouseID,
			OrderDate:    now,
			ExpectedDate: in.ExpectedDate,
			Status:       POPending,
			TotalAmount:  total.Round(2),
			Notes:        in.Notes,
			CreatedBy:    actor,
			CreatedAt:    now,
			UpdatedAt:    now,
			Items:        slices.Clone(items),
		}
		if err := tx.InsertPurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to insert purchase order: %w", err)
		}
		cs.orderStatus(OrderStatusChangedEvent{
			OrderType: RefPurchaseOrder, OrderID: po.ID, OrderNumber: po.PONumber,
			To: string(POPending), Actor: actor, OccurredAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("purchase order created",
		zap.String("po_number", po.PONumber), zap.Int64("id", po.ID),
		zap.String("total", po.TotalAmount.String()), zap.String("actor", actor))
	return po, nil
}

func (s *purchaseOrderService) Approve(ctx context.Context, poID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, "approve", POApproved)
}

func (s *purchaseOrderService) Cancel(ctx context.Context, poID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, poID, "cancel", POCancelled)
}

// transition applies a status-only change. No stock is touched.
func (s *purchaseOrderService) transition(ctx context.Context, poID int64, action string, to POStatus) (*PurchaseOrder, error) {
	actor := ActorFromContext(ctx)
	var cs changeSet
	var po *PurchaseOrder
	err := runTx(ctx, s.Store, action+" purchase order", func(tx Tx) error {
		cs.reset()
		var err error
		if po, err = tx.LockPurchaseOrder(ctx, poID); err != nil {
			return err
		}
		if err := checkPOTransition(po, action); err != nil {
			return err
		}
		from := po.Status
		po.Status = to
		po.UpdatedAt = s.Now().UTC()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}
		cs.orderStatus(OrderStatusChangedEvent{
			OrderType: RefPurchaseOrder, OrderID: po.ID, OrderNumber: po.PONumber,
			From: string(from), To: string(to), Actor: actor, OccurredAt: po.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("purchase order "+string(to),
		zap.String("po_number", po.PONumber), zap.Int64("id", po.ID), zap.String("actor", actor))
	return po, nil
}

func (s *purchaseOrderService) Receive(ctx context.Context, poID int64, lines []ReceiptLine, receivedBy string) (*PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, NewValidationError("receipt must contain at least one line")
	}
	var problems []string
	requested := make(map[int64]int64, len(lines))
	for _, l := range lines {
		if l.ReceivedQty <= 0 {
			problems = append(problems, fmt.Sprintf("line %d: received quantity must be positive, got %d", l.LineID, l.ReceivedQty))
		}
		requested[l.LineID] += l.ReceivedQty
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	actor := actorOr(ctx, receivedBy)

	var cs changeSet
	var po *PurchaseOrder
	err := runTx(ctx, s.Store, "receive purchase order", func(tx Tx) error {
		cs.reset()
		var err error
		if po, err = tx.LockPurchaseOrder(ctx, poID); err != nil {
			return err
		}
		if err := checkPOTransition(po, "receive"); err != nil {
			return err
		}

		// Validate the whole batch before touching stock.
		byID := make(map[int64]int, len(po.Items))
		for i, it := range po.Items {
			byID[it.ID] = i
		}
		var over []OverReceiptLine
		var keys []LedgerKey
		for _, l := range lines {
			idx, ok := byID[l.LineID]
			if !ok {
				return NewNotFoundError(fmt.Sprintf("line of purchase order %d", po.ID), l.LineID)
			}
			it := po.Items[idx]
			if total := requested[l.LineID]; total > it.Remaining() {
				if !slices.ContainsFunc(over, func(o OverReceiptLine) bool { return o.LineID == it.ID }) {
					over = append(over, OverReceiptLine{LineID: it.ID, Ordered: it.Quantity, Received: it.ReceivedQuantity, Requested: total})
				}
			}
			keys = append(keys, LedgerKey{ProductID: it.ProductID, WarehouseID: po.WarehouseID})
		}
		if len(over) > 0 {
			return &OverReceiptError{PurchaseOrderID: po.ID, Lines: over}
		}

		if err := tx.LockStock(ctx, keys...); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		for _, l := range lines {
			it := &po.Items[byID[l.LineID]]
			key := LedgerKey{ProductID: it.ProductID, WarehouseID: po.WarehouseID}
			if _, err := receiveTx(ctx, &cs, s.ledger, tx, key, l.ReceivedQty, po.PONumber, actor); err != nil {
				return err
			}
			it.ReceivedQuantity += l.ReceivedQty
		}

		from := po.Status
		if po.FullyReceived() {
			po.Status = POReceived
		}
		po.UpdatedAt = s.Now().UTC()
		if err := tx.UpdatePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}
		if po.Status != from {
			cs.orderStatus(OrderStatusChangedEvent{
				OrderType: RefPurchaseOrder, OrderID: po.ID, OrderNumber: po.PONumber,
				From: string(from), To: string(po.Status), Actor: actor, OccurredAt: po.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("purchase order received",
		zap.String("po_number", po.PONumber), zap.Int("lines", len(lines)),
		zap.String("status", string(po.Status)), zap.String("actor", actor))
	return po, nil
}

func (s *purchaseOrderService) Get(ctx context.Context, poID int64) (*PurchaseOrder, error) {
	return s.Store.GetPurchaseOrder(ctx, poID)
}

func (s *purchaseOrderService) List(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error) {
	pos, err := s.Store.ListPurchaseOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return pos, nil
}
