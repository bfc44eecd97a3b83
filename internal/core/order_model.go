package core

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type SOStatus string

const (
	SOPending    SOStatus = "Pending"
	SOProcessing SOStatus = "Processing"
	SOShipped    SOStatus = "Shipped"
	SODelivered  SOStatus = "Delivered"
	SOCancelled  SOStatus = "Cancelled"
)

var soTransitions = map[string][]SOStatus{
	"begin processing": {SOPending},
	"ship":             {SOPending, SOProcessing},
	"deliver":          {SOShipped},
	"cancel":           {SOPending, SOProcessing},
}

type ShipmentStatus string

const (
	ShipmentPreparing ShipmentStatus = "Preparing"
	ShipmentShipped   ShipmentStatus = "Shipped"
	ShipmentInTransit ShipmentStatus = "InTransit"
	ShipmentDelivered ShipmentStatus = "Delivered"
)

// SalesOrder is a customer order header with its items and shipments.
// While Pending or Processing, every item holds a reservation for its full quantity.
type SalesOrder struct {
	ID              int64            `json:"id"`
	SONumber        string           `json:"so_number"`
	CustomerID      int64            `json:"customer_id"`
	WarehouseID     int64            `json:"warehouse_id"`
	OrderDate       time.Time        `json:"order_date"`
	RequiredDate    *time.Time       `json:"required_date,omitempty"`
	Status          SOStatus         `json:"status"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	ShippingAddress string           `json:"shipping_address,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	CreatedBy       string           `json:"created_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	Items           []SalesOrderItem `json:"items"`
	Shipments       []Shipment       `json:"shipments,omitempty"`
}

type SalesOrderItem struct {
	ID           int64           `json:"id"`
	SalesOrderID int64           `json:"sales_order_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"` // percent, 0..100
}

var hundred = decimal.NewFromInt(100)

// LineTotal is quantity x unit price x (1 - discount/100).
func (i SalesOrderItem) LineTotal() decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(i.Discount.Div(hundred))
	return decimal.NewFromInt(i.Quantity).Mul(i.UnitPrice).Mul(factor)
}

type Shipment struct {
	ID             int64          `json:"id"`
	SalesOrderID   int64          `json:"sales_order_id"`
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	Status         ShipmentStatus `json:"status"`
	ShipmentDate   *time.Time     `json:"shipment_date,omitempty"`
	DeliveryDate   *time.Time     `json:"delivery_date,omitempty"`
	CreatedBy      string         `json:"created_by"`
}

// LatestOpenShipment returns the most recently created shipment that is not Delivered.
func (so *SalesOrder) LatestOpenShipment() *Shipment {
	for i := len(so.Shipments) - 1; i >= 0; i-- {
		if so.Shipments[i].Status != ShipmentDelivered {
			return &so.Shipments[i]
		}
	}
	return nil
}

func (so *SalesOrder) Clone() *SalesOrder {
	c := *so
	c.Items = slices.Clone(so.Items)
	c.Shipments = slices.Clone(so.Shipments)
	if so.RequiredDate != nil {
		d := *so.RequiredDate
		c.RequiredDate = &d
	}
	return &c
}

type SalesOrderItemInput struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type CreateSalesOrderInput struct {
	CustomerID      int64                 `json:"customer_id"`
	WarehouseID     int64                 `json:"warehouse_id"`
	RequiredDate    *time.Time            `json:"required_date,omitempty"`
	ShippingAddress string                `json:"shipping_address,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	Items           []SalesOrderItemInput `json:"items"`
}

type ShipInput struct {
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
	ProcessedBy    string `json:"processed_by"`
}

// SalesOrderService runs the sales order lifecycle.
type SalesOrderService interface {
	// Create reserves stock for every item and stores the order as Pending.
	// If any item cannot be reserved, no reservation from this call survives.
	Create(ctx context.Context, in CreateSalesOrderInput) (*SalesOrder, error)

	// BeginProcessing moves a Pending order to Processing. No stock effect.
	BeginProcessing(ctx context.Context, soID int64) (*SalesOrder, error)

	// Ship consumes every item's reservation, removes the stock, records a Shipped
	// shipment and moves the order to Shipped. Legal from Pending or Processing.
	Ship(ctx context.Context, soID int64, in ShipInput) (*SalesOrder, error)

	// Deliver moves a Shipped order to Delivered and marks its latest open shipment delivered.
	Deliver(ctx context.Context, soID int64) (*SalesOrder, error)

	// Cancel releases every reservation and moves a Pending or Processing order to Cancelled.
	Cancel(ctx context.Context, soID int64) (*SalesOrder, error)

	Get(ctx context.Context, soID int64) (*SalesOrder, error)
	List(ctx context.Context, filter OrderFilter) ([]SalesOrder, error)
}
