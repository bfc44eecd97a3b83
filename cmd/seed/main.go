// seed loads a demo catalog, two warehouses and opening stock. Safe to re-run:
// products and warehouses are upserted and opening stock is only booked for empty keys.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"os"

	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"
	"warehouse-ledger/internal/logger"
	"warehouse-ledger/internal/store/postgres"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type opening struct {
	sku       string
	warehouse string
	qty       int64
}

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("APP_ENV") == "" || os.Getenv("APP_ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	cfg := config.Load(log)

	ctx := core.WithActor(context.Background(), "seed")
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect", zap.Error(err))
	}
	defer pool.Close()

	store := postgres.New(pool, cfg.TxMaxRetries, log)

	products := []core.Product{
		{SKU: "WID-001", Name: "Widget", UnitPrice: decimal.RequireFromString("25.00"), CostPrice: decimal.RequireFromString("10.00"), ReorderLevel: 10, ReorderQuantity: 50, IsActive: true},
		{SKU: "GAD-002", Name: "Gadget", UnitPrice: decimal.RequireFromString("40.00"), CostPrice: decimal.RequireFromString("18.50"), ReorderLevel: 5, ReorderQuantity: 20, IsActive: true},
		{SKU: "BOLT-010", Name: "Hex bolt M10 (box of 100)", UnitPrice: decimal.RequireFromString("12.90"), CostPrice: decimal.RequireFromString("4.20"), ReorderLevel: 25, ReorderQuantity: 100, IsActive: true},
	}
	bySKU := make(map[string]int64, len(products))
	for i := range products {
		if err := store.UpsertProduct(ctx, &products[i]); err != nil {
			log.Fatal("failed to upsert product", zap.String("sku", products[i].SKU), zap.Error(err))
		}
		bySKU[products[i].SKU] = products[i].ID
	}

	capacity := int64(10000)
	warehouses := []core.Warehouse{
		{Name: "Main", Location: "Dock A", Capacity: &capacity, IsActive: true},
		{Name: "Overflow", Location: "Unit 7", IsActive: true},
	}
	byName := make(map[string]int64, len(warehouses))
	for i := range warehouses {
		if err := store.UpsertWarehouse(ctx, &warehouses[i]); err != nil {
			log.Fatal("failed to upsert warehouse", zap.String("name", warehouses[i].Name), zap.Error(err))
		}
		byName[warehouses[i].Name] = warehouses[i].ID
	}

	inv := core.NewInventoryService(core.Deps{Store: store, Catalog: store, Facilities: store, Logger: log})
	openings := []opening{
		{"WID-001", "Main", 120},
		{"GAD-002", "Main", 40},
		{"BOLT-010", "Overflow", 300},
	}
	for _, o := range openings {
		productID, warehouseID := bySKU[o.sku], byName[o.warehouse]
		e, err := inv.GetEntry(ctx, productID, warehouseID)
		if err != nil {
			log.Fatal("failed to read stock", zap.Error(err))
		}
		if e.QuantityOnHand != 0 {
			log.Info("opening stock already present", zap.String("sku", o.sku), zap.String("warehouse", o.warehouse))
			continue
		}
		if _, err := inv.Adjust(ctx, core.AdjustInput{ProductID: productID, WarehouseID: warehouseID, Quantity: o.qty, Reason: "opening balance"}); err != nil {
			log.Fatal("failed to book opening stock", zap.String("sku", o.sku), zap.Error(err))
		}
	}

	log.Info("seed data loaded",
		zap.Int("products", len(products)),
		zap.Int("warehouses", len(warehouses)),
	)
}
