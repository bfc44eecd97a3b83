package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. Inventory references it by ID and never mutates it.
type Product struct {
	ID              int64           `json:"id"`
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	ReorderLevel    int64           `json:"reorder_level"`
	ReorderQuantity int64           `json:"reorder_quantity"`
	IsActive        bool            `json:"is_active"`
}

// Warehouse is a physical stock location. Capacity is nil when unbounded.
type Warehouse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
	Capacity *int64 `json:"capacity,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Catalog resolves products. Lookups of unknown products return a *NotFoundError.
type Catalog interface {
	ProductByID(ctx context.Context, id int64) (*Product, error)
	ProductBySKU(ctx context.Context, sku string) (*Product, error)
}

// Facilities resolves warehouses. Lookups of unknown warehouses return a *NotFoundError.
type Facilities interface {
	WarehouseByID(ctx context.Context, id int64) (*Warehouse, error)
}

type actorKey struct{}

// SystemActor is recorded on movements when no actor is attached to the context.
const SystemActor = "system"

// WithActor attaches the acting user to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}

func actorOr(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return ActorFromContext(ctx)
}

// Clock returns the current time. Services take one so tests can pin dates.
type Clock func() time.Time
