package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"warehouse-ledger/internal/core"
)

// ToolHandler returns a JSON-encodable snapshot the model may ground its proposal on.
type ToolHandler func(ctx context.Context) (any, error)

// ToolDefinition is one read-only context source.
type ToolDefinition struct {
	Name        string
	Description string
	Handler     ToolHandler
}

// ToolRegistry holds the read tools whose output is given to the model on every call.
// Write actions are never tools: the model only proposes them.
type ToolRegistry struct {
	tools []ToolDefinition
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

func (r *ToolRegistry) Register(t ToolDefinition) {
	r.tools = append(r.tools, t)
}

// Get returns the ToolDefinition for a given tool name, and whether it was found.
func (r *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDefinition{}, false
}

func (r *ToolRegistry) All() []ToolDefinition {
	return r.tools
}

// Render runs every tool and formats the results as prompt sections.
func (r *ToolRegistry) Render(ctx context.Context) (string, error) {
	var b strings.Builder
	for _, t := range r.tools {
		out, err := t.Handler(ctx)
		if err != nil {
			return "", fmt.Errorf("tool %s: %w", t.Name, err)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("tool %s: failed to encode result: %w", t.Name, err)
		}
		fmt.Fprintf(&b, "### %s\n%s\n%s\n\n", t.Name, t.Description, data)
	}
	return b.String(), nil
}

// ProductLister lists the active catalog.
type ProductLister interface {
	ListProducts(ctx context.Context) ([]core.Product, error)
}

type catalogEntry struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	ReorderLevel int64  `json:"reorder_level"`
}

type stockEntry struct {
	SKU         string `json:"sku"`
	WarehouseID int64  `json:"warehouse_id"`
	Warehouse   string `json:"warehouse"`
	OnHand      int64  `json:"on_hand"`
	Available   int64  `json:"available"`
}

// NewStockTools registers the catalog and current stock levels.
func NewStockTools(products ProductLister, inventory core.InventoryService) *ToolRegistry {
	r := NewToolRegistry()
	r.Register(ToolDefinition{
		Name:        "catalog",
		Description: "Active products. Use only these SKUs.",
		Handler: func(ctx context.Context) (any, error) {
			ps, err := products.ListProducts(ctx)
			if err != nil {
				return nil, err
			}
			out := make([]catalogEntry, 0, len(ps))
			for _, p := range ps {
				out = append(out, catalogEntry{SKU: p.SKU, Name: p.Name, ReorderLevel: p.ReorderLevel})
			}
			return out, nil
		},
	})
	r.Register(ToolDefinition{
		Name:        "stock_levels",
		Description: "Current stock per product and warehouse. Use only these warehouse IDs.",
		Handler: func(ctx context.Context) (any, error) {
			levels, err := inventory.ListStock(ctx, core.StockFilter{})
			if err != nil {
				return nil, err
			}
			out := make([]stockEntry, 0, len(levels))
			for _, l := range levels {
				out = append(out, stockEntry{
					SKU:         l.SKU,
					WarehouseID: l.WarehouseID,
					Warehouse:   l.WarehouseName,
					OnHand:      l.QuantityOnHand,
					Available:   l.AvailableQty,
				})
			}
			return out, nil
		},
	})
	return r
}
