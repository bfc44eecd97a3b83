package app

import (
	"context"

	"warehouse-ledger/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// Every call runs under the configured operation timeout; the acting user travels
// in the context via core.WithActor. Implementations contain no presentation logic.
type ApplicationService interface {
	// GetStock returns one ledger entry, zero-valued if the key was never written.
	GetStock(ctx context.Context, productID, warehouseID int64) (*StockEntryResult, error)

	// ListStock returns stock levels joined with catalog data.
	ListStock(ctx context.Context, filter core.StockFilter) (*StockResult, error)

	// ListMovements returns the movement audit trail, newest first.
	ListMovements(ctx context.Context, filter core.MovementFilter) (*MovementListResult, error)

	// AdjustStock applies a signed manual correction.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockEntryResult, error)

	// TransferStock moves available stock between warehouses atomically.
	TransferStock(ctx context.Context, req TransferStockRequest) (*core.TransferResult, error)

	// ReconcileStock compares one ledger entry with the fold of its movements.
	ReconcileStock(ctx context.Context, productID, warehouseID int64) (*core.Reconciliation, error)

	CreatePurchaseOrder(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResult, error)
	ApprovePurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error)
	CancelPurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error)
	// ReceivePurchaseOrder books an all-or-nothing batch of line receipts.
	ReceivePurchaseOrder(ctx context.Context, req ReceivePORequest) (*PurchaseOrderResult, error)
	GetPurchaseOrder(ctx context.Context, poID int64) (*PurchaseOrderResult, error)
	ListPurchaseOrders(ctx context.Context, filter core.OrderFilter) (*PurchaseOrdersResult, error)

	// CreateSalesOrder reserves stock for every line or for none.
	CreateSalesOrder(ctx context.Context, req CreateSalesOrderRequest) (*SalesOrderResult, error)
	BeginProcessing(ctx context.Context, soID int64) (*SalesOrderResult, error)
	ShipSalesOrder(ctx context.Context, req ShipOrderRequest) (*SalesOrderResult, error)
	DeliverSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error)
	CancelSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error)
	GetSalesOrder(ctx context.Context, soID int64) (*SalesOrderResult, error)
	ListSalesOrders(ctx context.Context, filter core.OrderFilter) (*SalesOrdersResult, error)

	// InterpretStockEvent asks the assistant for an adjustment or transfer proposal.
	// Nothing is written; the caller confirms with ExecuteStockAction.
	InterpretStockEvent(ctx context.Context, text string) (*AIResult, error)

	// ExecuteStockAction applies a confirmed proposal. Must only be called after explicit
	// user approval.
	ExecuteStockAction(ctx context.Context, proposal core.StockActionProposal) (*StockActionResult, error)
}
