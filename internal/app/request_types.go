package app

import (
	"time"

	"warehouse-ledger/internal/core"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type AdjustStockRequest struct {
	ProductID   int64  `json:"product_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Quantity    int64  `json:"quantity"`
	Reason      string `json:"reason"`
}

type TransferStockRequest struct {
	ProductID       int64  `json:"product_id"`
	FromWarehouseID int64  `json:"from_warehouse_id"`
	ToWarehouseID   int64  `json:"to_warehouse_id"`
	Quantity        int64  `json:"quantity"`
	Notes           string `json:"notes"`
}

// CreatePurchaseOrderRequest is the input for creating a Pending purchase order.
type CreatePurchaseOrderRequest struct {
	SupplierID   int64         `json:"supplier_id"`
	WarehouseID  int64         `json:"warehouse_id"`
	ExpectedDate string        `json:"expected_date"` // YYYY-MM-DD, optional
	Notes        string        `json:"notes"`
	Lines        []POLineInput `json:"lines"`
}

type POLineInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// ReceivePORequest records goods received against an Approved purchase order.
type ReceivePORequest struct {
	PurchaseOrderID int64              `json:"-"`
	Lines           []core.ReceiptLine `json:"lines"`
}

// CreateSalesOrderRequest is the input for creating a Pending sales order.
type CreateSalesOrderRequest struct {
	CustomerID      int64         `json:"customer_id"`
	WarehouseID     int64         `json:"warehouse_id"`
	RequiredDate    string        `json:"required_date"` // YYYY-MM-DD, optional
	ShippingAddress string        `json:"shipping_address"`
	Notes           string        `json:"notes"`
	Lines           []SOLineInput `json:"lines"`
}

type SOLineInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"` // percent
}

type ShipOrderRequest struct {
	SalesOrderID   int64  `json:"-"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, core.NewValidationError("%s must be YYYY-MM-DD, got %q", field, s)
	}
	return &d, nil
}
