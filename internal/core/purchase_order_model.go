package core

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type POStatus string

const (
	POPending   POStatus = "Pending"
	POApproved  POStatus = "Approved"
	POReceived  POStatus = "Received"
	POCancelled POStatus = "Cancelled"
)

// poTransitions lists, per action, the statuses it may start from.
var poTransitions = map[string][]POStatus{
	"approve": {POPending},
	"cancel":  {POPending, POApproved},
	"receive": {POApproved},
}

// PurchaseOrder is a purchase order header with its items.
// Items are fixed at creation; only Status and ReceivedQuantity change afterwards.
type PurchaseOrder struct {
	ID           int64               `json:"id"`
	PONumber     string              `json:"po_number"`
	SupplierID   int64               `json:"supplier_id"`
	WarehouseID  int64               `json:"warehouse_id"`
	OrderDate    time.Time           `json:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date,omitempty"`
	Status       POStatus            `json:"status"`
	TotalAmount  decimal.Decimal     `json:"total_amount"`
	Notes        string              `json:"notes,omitempty"`
	CreatedBy    string              `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Items        []PurchaseOrderItem `json:"items"`
}

// PurchaseOrderItem is one ordered line. ReceivedQuantity never exceeds Quantity.
type PurchaseOrderItem struct {
	ID               int64           `json:"id"`
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	ProductID        int64           `json:"product_id"`
	Quantity         int64           `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReceivedQuantity int64           `json:"received_quantity"`
}

func (i PurchaseOrderItem) Remaining() int64 { return i.Quantity - i.ReceivedQuantity }

func (i PurchaseOrderItem) LineTotal() decimal.Decimal {
	return decimal.NewFromInt(i.Quantity).Mul(i.UnitCost)
}

// FullyReceived reports whether every line has received its ordered quantity.
func (po *PurchaseOrder) FullyReceived() bool {
	for _, it := range po.Items {
		if it.ReceivedQuantity != it.Quantity {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (po *PurchaseOrder) Clone() *PurchaseOrder {
	c := *po
	c.Items = slices.Clone(po.Items)
	if po.ExpectedDate != nil {
		d := *po.ExpectedDate
		c.ExpectedDate = &d
	}
	return &c
}

type PurchaseOrderItemInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type CreatePurchaseOrderInput struct {
	SupplierID   int64                    `json:"supplier_id"`
	WarehouseID  int64                    `json:"warehouse_id"`
	ExpectedDate *time.Time               `json:"expected_date,omitempty"`
	Notes        string                   `json:"notes,omitempty"`
	CreatedBy    string                   `json:"created_by"`
	Items        []PurchaseOrderItemInput `json:"items"`
}

// ReceiptLine is one line of a receive batch.
type ReceiptLine struct {
	LineID      int64 `json:"line_id"`
	ReceivedQty int64 `json:"received_qty"`
}

// OrderFilter narrows order listings. PartyID is the supplier for purchase orders
// and the customer for sales orders. Zero values mean no filter.
type OrderFilter struct {
	Status  string
	PartyID int64
	Limit   int
}

// PurchaseOrderService runs the purchase order lifecycle.
type PurchaseOrderService interface {
	// Create validates the items, allocates the next PO number for the current year
	// and stores the order as Pending. No stock effect.
	Create(ctx context.Context, in CreatePurchaseOrderInput) (*PurchaseOrder, error)

	// Approve moves a Pending order to Approved.
	Approve(ctx context.Context, poID int64) (*PurchaseOrder, error)

	// Cancel moves a Pending or Approved order to Cancelled.
	Cancel(ctx context.Context, poID int64) (*PurchaseOrder, error)

	// Receive books a batch of receipts against an Approved order.
	// The batch is all-or-nothing: any failing line leaves the order and the ledger untouched.
	// The order moves to Received once every line is complete.
	Receive(ctx context.Context, poID int64, lines []ReceiptLine, receivedBy string) (*PurchaseOrder, error)

	Get(ctx context.Context, poID int64) (*PurchaseOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error)
}
