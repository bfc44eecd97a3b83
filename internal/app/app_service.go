package app

import (
	"context"
	"errors"
	"time"

	"warehouse-ledger/internal/ai"
	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

// ErrAssistantUnavailable is returned by InterpretStockEvent when no assistant is configured.
var ErrAssistantUnavailable = errors.New("stock assistant is not configured")

// Services bundles the collaborators of appService.
type Services struct {
	Inventory      core.InventoryService
	PurchaseOrders core.PurchaseOrderService
	SalesOrders    core.SalesOrderService
	Catalog        core.Catalog
	Products       ai.ProductLister
	// Assistant may be nil; InterpretStockEvent then returns ErrAssistantUnavailable.
	Assistant ai.StockAssistant
}

type appService struct {
	inv       core.InventoryService
	pos       core.PurchaseOrderService
	sos       core.SalesOrderService
	catalog   core.Catalog
	assistant ai.StockAssistant
	tools     *ai.ToolRegistry
	timeout   time.Duration
	log       *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
// A non-positive timeout disables the per-operation deadline.
func NewAppService(svc Services, timeout time.Duration, log *zap.Logger) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	s := &appService{
		inv:       svc.Inventory,
		pos:       svc.PurchaseOrders,
		sos:       svc.SalesOrders,
		catalog:   svc.Catalog,
		assistant: svc.Assistant,
		timeout:   timeout,
		log:       log,
	}
	if svc.Products != nil {
		s.tools = ai.NewStockTools(svc.Products, svc.Inventory)
	}
	return s
}

func (s *appService) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func (s *appService) GetStock(ctx context.Context, productID, warehouseID int64) (*StockEntryResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	e, err := s.inv.GetEntry(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	return &StockEntryResult{Entry: e}, nil
}

func (s *appService) ListStock(ctx context.Context, filter core.StockFilter) (*StockResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	levels, err := s.inv.ListStock(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &StockResult{Levels: levels}, nil
}

func (s *appService) ListMovements(ctx context.Context, filter core.MovementFilter) (*MovementListResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	ms, err := s.inv.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: ms}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockEntryResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	e, err := s.inv.Adjust(ctx, core.AdjustInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &StockEntryResult{Entry: e}, nil
}

func (s *appService) TransferStock(ctx context.Context, req TransferStockRequest) (*core.TransferResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.inv.Transfer(ctx, core.TransferInput{
		ProductID:       req.ProductID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		Notes:           req.Notes,
	})
}

func (s *appService) ReconcileStock(ctx context.Context, productID, warehouseID int64) (*core.Reconciliation, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return s.inv.Reconcile(ctx, productID, warehouseID)
}

// ── Purchase orders ───────────────────────────────────────────────────────────

func (s *appService) CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error) {
	expected, err := parseDate("expected_date", req.ExpectedDate)
	if err != nil {
		return nil, err
	}
	items := make([]core.PurchaseOrderItemInput, len(req.Lines))
	for i, l := range req.Lines {
		items[i] = core.PurchaseOrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost}
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	po, err := s.pos.Create(ctx, core.CreatePurchaseOrderInput{
		SupplierID:   req.SupplierID,
		WarehouseID:  req.WarehouseID,
		ExpectedDate: expected,
		Notes:        req.Notes,
		Items:        items,
	})
	return poResult(po, err)
}

func (s *appService) ApprovePurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return poResult(s.pos.Approve(ctx, poID))
}

func (s *appService) CancelPurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return poResult(s.pos.Cancel(ctx, poID))
}

func (s *appService) ReceivePurchaseOrder(ctx context.Context, req ReceivePORequest) (*PurchaseOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return poResult(s.pos.Receive(ctx, req.PurchaseOrderID, req.Lines, ""))
}

func (s *appService) GetPurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return poResult(s.pos.Get(ctx, poID))
}

func (s *appService) ListPurchaseOrders(ctx context.Context, filter core.OrderFilter) (*PurchaseOrdersResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	pos, err := s.pos.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrdersResult{PurchaseOrders: pos}, nil
}

func poResult(po *core.PurchaseOrder, err error) (*PurchaseOrderResult, error) {
	if err != nil {
		return nil, err
	}
	return &PurchaseOrderResult{PurchaseOrder: po}, nil
}

// ── Sales orders ──────────────────────────────────────────────────────────────

func (s *appService) CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*SalesOrderResult, error) {
	required, err := parseDate("required_date", req.RequiredDate)
	if err != nil {
		return nil, err
	}
	items := make([]core.SalesOrderItemInput, len(req.Lines))
	for i, l := range req.Lines {
		items[i] = core.SalesOrderItemInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount}
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	so, err := s.sos.Create(ctx, core.CreateSalesOrderInput{
		CustomerID:      req.CustomerID,
		WarehouseID:     req.WarehouseID,
		RequiredDate:    required,
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
		Items:           items,
	})
	return soResult(so, err)
}

func (s *appService) BeginProcessing(ctx context.Context, soID int64) (*SalesOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return soResult(s.sos.BeginProcessing(ctx, soID))
}

func (s *appService) ShipSalesOrder(ctx context.Context, req ShipOrderRequest) (*SalesOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return soResult(s.sos.Ship(ctx, req.SalesOrderID, core.ShipInput{Carrier: req.Carrier, TrackingNumber: req.TrackingNumber}))
}

func (s *appService) DeliverSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return soResult(s.sos.Deliver(ctx, soID))
}

func (s *appService) CancelSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return soResult(s.sos.Cancel(ctx, soID))
}

func (s *appService) GetSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return soResult(s.sos.Get(ctx, soID))
}

func (s *appService) ListSalesOrders(ctx context.Context, filter core.OrderFilter) (*SalesOrdersResult, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	sos, err := s.sos.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SalesOrdersResult{SalesOrders: sos}, nil
}

func soResult(so *core.SalesOrder, err error) (*SalesOrderResult, error) {
	if err != nil {
		return nil, err
	}
	return &SalesOrderResult{SalesOrder: so}, nil
}

// ── Assistant ─────────────────────────────────────────────────────────────────

// InterpretStockEvent is not bound by the operation timeout; model latency is outside
// the ledger's guarantees and nothing is written.
func (s *appService) InterpretStockEvent(ctx context.Context, text string) (*AIResult, error) {
	if s.assistant == nil || s.tools == nil {
		return nil, ErrAssistantUnavailable
	}
	resp, err := s.assistant.Propose(ctx, text, s.tools)
	if err != nil {
		return nil, err
	}
	if resp.IsClarificationRequest {
		return &AIResult{IsClarification: true, ClarificationMessage: resp.Clarification.Message}, nil
	}
	s.log.Info("stock action proposed",
		zap.String("action", string(resp.Proposal.Action)),
		zap.String("sku", resp.Proposal.SKU),
		zap.Float64("confidence", resp.Proposal.Confidence),
	)
	return &AIResult{Proposal: resp.Proposal}, nil
}

func (s *appService) ExecuteStockAction(ctx context.Context, proposal core.StockActionProposal) (*StockActionResult, error) {
	proposal.Normalize()
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()
	product, err := s.catalog.ProductBySKU(ctx, proposal.SKU)
	if err != nil {
		return nil, err
	}

	switch proposal.Action {
	case core.ActionTransfer:
		res, err := s.inv.Transfer(ctx, core.TransferInput{
			ProductID:       product.ID,
			FromWarehouseID: proposal.WarehouseID,
			ToWarehouseID:   proposal.ToWarehouseID,
			Quantity:        proposal.Quantity,
			Notes:           proposal.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &StockActionResult{Action: proposal.Action, Transfer: res}, nil
	default:
		e, err := s.inv.Adjust(ctx, core.AdjustInput{
			ProductID:   product.ID,
			WarehouseID: proposal.WarehouseID,
			Quantity:    proposal.Quantity,
			Reason:      proposal.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &StockActionResult{Action: proposal.Action, Entry: &e}, nil
	}
}
