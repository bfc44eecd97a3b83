package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type salesOrderService struct {
	Deps
	ledger *Ledger
}

func NewSalesOrderService(deps Deps) SalesOrderService {
	deps = deps.withDefaults()
	return &salesOrderService{Deps: deps, ledger: NewLedger(deps.Now)}
}

func checkSOTransition(so *SalesOrder, action string) error {
	if slices.Contains(soTransitions[action], so.Status) {
		return nil
	}
	return &InvalidStateTransitionError{Entity: "sales order", ID: so.ID, From: string(so.Status), Action: action}
}

func (so *SalesOrder) stockKeys() []LedgerKey {
	keys := make([]LedgerKey, 0, len(so.Items))
	for _, it := range so.Items {
		keys = append(keys, LedgerKey{ProductID: it.ProductID, WarehouseID: so.WarehouseID})
	}
	return keys
}

func (s *salesOrderService) Create(ctx context.Context, in CreateSalesOrderInput) (*SalesOrder, error) {
	var problems []string
	if in.CustomerID <= 0 {
		problems = append(problems, "customer is required")
	}
	if len(in.Items) == 0 {
		problems = append(problems, "sales order must have at least one item")
	}
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("item %d: quantity must be positive, got %d", i+1, it.Quantity))
		}
		if it.UnitPrice.IsNegative() {
			problems = append(problems, fmt.Sprintf("item %d: unit price cannot be negative, got %s", i+1, it.UnitPrice))
		}
		if it.Discount.IsNegative() || it.Discount.GreaterThan(hundred) {
			problems = append(problems, fmt.Sprintf("item %d: discount must be within 0..100, got %s", i+1, it.Discount))
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
	actor := ActorFromContext(ctx)
	total := decimal.Zero
	items := make([]SalesOrderItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = SalesOrderItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, Discount: it.Discount}
		total = total.Add(items[i].LineTotal())
	}

	var cs changeSet
	var so *SalesOrder
	err := runTx(ctx, s.Store, "create sales order", func(tx Tx) error {
		cs.reset()
		number, err := NextOrderNumber(ctx, tx, SalesOrderPrefix, now.Year())
		if err != nil {
			return err
		}
		so = &SalesOrder{
			SONumber:        number,
			CustomerID:      in.CustomerID,
			WarehouseID:     in.WarehouseID,
			OrderDate:       now,
			RequiredDate:    in.RequiredDate,
			Status:          SOPending,
			TotalAmount:     total.Round(2),
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
			CreatedBy:       actor,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           slices.Clone(items),
		}
		if err := tx.LockStock(ctx, so.stockKeys()...); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		for _, it := range so.Items {
			key := LedgerKey{ProductID: it.ProductID, WarehouseID: so.WarehouseID}
			if _, err := reserveTx(ctx, &cs, s.ledger, tx, key, it.Quantity, RefSalesOrder, number, actor); err != nil {
				return err
			}
		}
		if err := tx.InsertSalesOrder(ctx, so); err != nil {
			return fmt.Errorf("failed to insert sales order: %w", err)
		}
		cs.orderStatus(OrderStatusChangedEvent{
			OrderType: RefSalesOrder, OrderID: so.ID, OrderNumber: so.SONumber,
			To: string(SOPending), Actor: actor, OccurredAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("sales order created",
		zap.String("so_number", so.SONumber), zap.Int64("id", so.ID),
		zap.String("total", so.TotalAmount.String()), zap.String("actor", actor))
	return so, nil
}

func (s *salesOrderService) BeginProcessing(ctx context.Context, soID int64) (*SalesOrder, error) {
	return s.transition(ctx, soID, "begin processing", SOProcessing, nil)
}

func (s *salesOrderService) Ship(ctx context.Context, soID int64, in ShipInput) (*SalesOrder, error) {
	actor := actorOr(ctx, in.ProcessedBy)
	return s.transition(ctx, soID, "ship", SOShipped, func(cs *changeSet, tx Tx, so *SalesOrder) error {
		if err := tx.LockStock(ctx, so.stockKeys()...); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		for _, it := range so.Items {
			key := LedgerKey{ProductID: it.ProductID, WarehouseID: so.WarehouseID}
			if _, err := shipTx(ctx, cs, s.ledger, tx, key, it.Quantity, so.SONumber, actor); err != nil {
				return err
			}
		}
		shippedAt := s.Now().UTC()
		sh := Shipment{
			SalesOrderID:   so.ID,
			Carrier:        in.Carrier,
			TrackingNumber: in.TrackingNumber,
			Status:         ShipmentShipped,
			ShipmentDate:   &shippedAt,
			CreatedBy:      actor,
		}
		if err := tx.InsertShipment(ctx, &sh); err != nil {
			return fmt.Errorf("failed to insert shipment: %w", err)
		}
		so.Shipments = append(so.Shipments, sh)
		return nil
	})
}

func (s *salesOrderService) Deliver(ctx context.Context, soID int64) (*SalesOrder, error) {
	return s.transition(ctx, soID, "deliver", SODelivered, func(cs *changeSet, tx Tx, so *SalesOrder) error {
		sh := so.LatestOpenShipment()
		if sh == nil {
			return nil
		}
		deliveredAt := s.Now().UTC()
		sh.Status = ShipmentDelivered
		sh.DeliveryDate = &deliveredAt
		if err := tx.UpdateShipment(ctx, sh); err != nil {
			return fmt.Errorf("failed to update shipment: %w", err)
		}
		return nil
	})
}

func (s *salesOrderService) Cancel(ctx context.Context, soID int64) (*SalesOrder, error) {
	actor := ActorFromContext(ctx)
	return s.transition(ctx, soID, "cancel", SOCancelled, func(cs *changeSet, tx Tx, so *SalesOrder) error {
		if err := tx.LockStock(ctx, so.stockKeys()...); err != nil {
			return fmt.Errorf("failed to lock stock: %w", err)
		}
		for _, it := range so.Items {
			key := LedgerKey{ProductID: it.ProductID, WarehouseID: so.WarehouseID}
			if _, err := releaseTx(ctx, cs, s.ledger, tx, key, it.Quantity, RefSalesOrder, so.SONumber, actor); err != nil {
				return err
			}
		}
		return nil
	})
}

// transition locks the order, checks the action is legal from its status, runs effect
// (if any) and stores the new status, all in one unit of work.
func (s *salesOrderService) transition(ctx context.Context, soID int64, action string, to SOStatus,
	effect func(cs *changeSet, tx Tx, so *SalesOrder) error) (*SalesOrder, error) {

	actor := ActorFromContext(ctx)
	var cs changeSet
	var so *SalesOrder
	err := runTx(ctx, s.Store, action+" sales order", func(tx Tx) error {
		cs.reset()
		var err error
		if so, err = tx.LockSalesOrder(ctx, soID); err != nil {
			return err
		}
		if err := checkSOTransition(so, action); err != nil {
			return err
		}
		if effect != nil {
			if err := effect(&cs, tx, so); err != nil {
				return err
			}
		}
		from := so.Status
		so.Status = to
		so.UpdatedAt = s.Now().UTC()
		if err := tx.UpdateSalesOrderStatus(ctx, so); err != nil {
			return fmt.Errorf("failed to update sales order: %w", err)
		}
		cs.orderStatus(OrderStatusChangedEvent{
			OrderType: RefSalesOrder, OrderID: so.ID, OrderNumber: so.SONumber,
			From: string(from), To: string(to), Actor: actor, OccurredAt: so.UpdatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.committed(ctx, &cs)
	s.Logger.Info("sales order "+string(to),
		zap.String("so_number", so.SONumber), zap.Int64("id", so.ID), zap.String("actor", actor))
	return so, nil
}

func (s *salesOrderService) Get(ctx context.Context, soID int64) (*SalesOrder, error) {
	return s.Store.GetSalesOrder(ctx, soID)
}

func (s *salesOrderService) List(ctx context.Context, filter OrderFilter) ([]SalesOrder, error) {
	sos, err := s.Store.ListSalesOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales orders: %w", err)
	}
	return sos, nil
}
