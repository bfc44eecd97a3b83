package core

import (
	"cmp"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKey identifies one stock record.
type LedgerKey struct {
	ProductID   int64 `json:"product_id"`
	WarehouseID int64 `json:"warehouse_id"`
}

func (k LedgerKey) String() string {
	return fmt.Sprintf("%d/%d", k.ProductID, k.WarehouseID)
}

// Compare orders keys by product then warehouse. Stores acquire stock locks in this order.
func (k LedgerKey) Compare(o LedgerKey) int {
	if c := cmp.Compare(k.ProductID, o.ProductID); c != 0 {
		return c
	}
	return cmp.Compare(k.WarehouseID, o.WarehouseID)
}

// StockLedgerEntry is the on-hand and reserved position for one LedgerKey.
// Invariant: 0 <= QuantityReserved <= QuantityOnHand.
// Version increases by one on every applied change; zero means the entry was never written.
type StockLedgerEntry struct {
	LedgerKey
	QuantityOnHand   int64      `json:"quantity_on_hand"`
	QuantityReserved int64      `json:"quantity_reserved"`
	LastRestockDate  *time.Time `json:"last_restock_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Version          int64      `json:"version"`
}

// Available is the sellable and transferable quantity.
func (e StockLedgerEntry) Available() int64 {
	return e.QuantityOnHand - e.QuantityReserved
}

type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementTransfer   MovementType = "TRANSFER"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReserve    MovementType = "RESERVE"
	MovementRelease    MovementType = "RELEASE"
)

type ReferenceType string

const (
	RefPurchaseOrder ReferenceType = "PO"
	RefSalesOrder    ReferenceType = "SO"
	RefManual        ReferenceType = "MANUAL"
	RefTransfer      ReferenceType = "TRANSFER"
)

// StockMovement is the append-only audit record of one ledger change.
// Quantity is the signed on-hand delta; ReservedDelta is the signed reserved delta.
type StockMovement struct {
	ID            int64         `json:"id"`
	ProductID     int64         `json:"product_id"`
	WarehouseID   int64         `json:"warehouse_id"`
	MovementType  MovementType  `json:"movement_type"`
	Quantity      int64         `json:"quantity"`
	ReservedDelta int64         `json:"reserved_delta"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceID   string        `json:"reference_id"`
	Notes         string        `json:"notes,omitempty"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

func (m StockMovement) Key() LedgerKey {
	return LedgerKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID}
}

// StockLevel is a read view of a ledger entry joined with product and warehouse data.
type StockLevel struct {
	StockLedgerEntry
	SKU              string          `json:"sku"`
	ProductName      string          `json:"product_name"`
	WarehouseName    string          `json:"warehouse_name"`
	AvailableQty     int64           `json:"available_quantity"`
	ReorderLevel     int64           `json:"reorder_level"`
	SuggestedReorder int64           `json:"suggested_reorder"`
	StockValue       decimal.Decimal `json:"stock_value"` // on hand x cost price
	IsLowStock       bool            `json:"is_low_stock"`
}

// StockFilter narrows ListStock. Zero values mean no filter.
type StockFilter struct {
	WarehouseID  int64
	LowStockOnly bool
}

// MovementFilter narrows ListMovements. Zero values mean no filter.
type MovementFilter struct {
	ProductID     int64
	WarehouseID   int64
	ReferenceType ReferenceType
	ReferenceID   string
	Limit         int
}

// Reconciliation compares a ledger entry to the fold of its movements.
type Reconciliation struct {
	Key            LedgerKey `json:"key"`
	LedgerOnHand   int64     `json:"ledger_on_hand"`
	LedgerReserved int64     `json:"ledger_reserved"`
	FoldedOnHand   int64     `json:"folded_on_hand"`
	FoldedReserved int64     `json:"folded_reserved"`
	MovementCount  int       `json:"movement_count"`
	Consistent     bool      `json:"consistent"`
}
