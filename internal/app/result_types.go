package app

import "warehouse-ledger/internal/core"

type StockEntryResult struct {
	Entry core.StockLedgerEntry `json:"entry"`
}

type StockResult struct {
	Levels []core.StockLevel `json:"levels"`
}

type MovementListResult struct {
	Movements []core.StockMovement `json:"movements"`
}

type PurchaseOrderResult struct {
	PurchaseOrder *core.PurchaseOrder `json:"purchase_order"`
}

type PurchaseOrdersResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}

type SalesOrderResult struct {
	SalesOrder *core.SalesOrder `json:"sales_order"`
}

type SalesOrdersResult struct {
	SalesOrders []core.SalesOrder `json:"sales_orders"`
}

// AIResult is returned by InterpretStockEvent.
type AIResult struct {
	Proposal             *core.StockActionProposal `json:"proposal,omitempty"`
	ClarificationMessage string                    `json:"clarification_message,omitempty"`
	IsClarification      bool                      `json:"is_clarification"`
}

// StockActionResult is returned by ExecuteStockAction. Exactly one of Entry or Transfer is set.
type StockActionResult struct {
	Action   core.StockAction       `json:"action"`
	Entry    *core.StockLedgerEntry `json:"entry,omitempty"`
	Transfer *core.TransferResult   `json:"transfer,omitempty"`
}
