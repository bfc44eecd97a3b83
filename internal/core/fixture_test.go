package core_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
)

const (
	productX        int64 = 1
	productY        int64 = 2
	productInactive int64 = 3
	warehouse1      int64 = 10
	warehouse2      int64 = 20
	warehouseClosed int64 = 30
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []core.Event
	for _, e := range p.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	clock  *testClock
	events *recordingPublisher
	inv    core.InventoryService
	pos    core.PurchaseOrderService
	sos    core.SalesOrderService
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	st.AddProduct(core.Product{ID: productX, SKU: "WID-001", Name: "Widget", UnitPrice: dec("25"), CostPrice: dec("10"), ReorderLevel: 10, ReorderQuantity: 50, IsActive: true})
	st.AddProduct(core.Product{ID: productY, SKU: "GAD-002", Name: "Gadget", UnitPrice: dec("40"), CostPrice: dec("18.50"), ReorderLevel: 5, ReorderQuantity: 20, IsActive: true})
	st.AddProduct(core.Product{ID: productInactive, SKU: "OLD-003", Name: "Retired", IsActive: false})
	st.AddWarehouse(core.Warehouse{ID: warehouse1, Name: "Main", IsActive: true})
	st.AddWarehouse(core.Warehouse{ID: warehouse2, Name: "Overflow", IsActive: true})
	st.AddWarehouse(core.Warehouse{ID: warehouseClosed, Name: "Closed", IsActive: false})

	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	events := &recordingPublisher{}
	deps := core.Deps{Store: st, Catalog: st, Facilities: st, Events: events, Now: clock.Now}
	return &fixture{
		ctx:    core.WithActor(context.Background(), "tester"),
		store:  st,
		clock:  clock,
		events: events,
		inv:    core.NewInventoryService(deps),
		pos:    core.NewPurchaseOrderService(deps),
		sos:    core.NewSalesOrderService(deps),
	}
}

// seed sets on-hand for an untouched key through a positive adjustment.
func (f *fixture) seed(t *testing.T, productID, warehouseID, qty int64) {
	t.Helper()
	if _, err := f.inv.Adjust(f.ctx, core.AdjustInput{ProductID: productID, WarehouseID: warehouseID, Quantity: qty, Reason: "opening balance"}); err != nil {
		t.Fatalf("Failed to seed stock: %v", err)
	}
}

func (f *fixture) entry(t *testing.T, productID, warehouseID int64) core.StockLedgerEntry {
	t.Helper()
	e, err := f.inv.GetEntry(f.ctx, productID, warehouseID)
	if err != nil {
		t.Fatalf("GetEntry failed: %v", err)
	}
	return e
}

func (f *fixture) assertStock(t *testing.T, productID, warehouseID, onHand, reserved int64) {
	t.Helper()
	e := f.entry(t, productID, warehouseID)
	if e.QuantityOnHand != onHand || e.QuantityReserved != reserved {
		t.Errorf("stock %d/%d: expected on hand %d reserved %d, got on hand %d reserved %d",
			productID, warehouseID, onHand, reserved, e.QuantityOnHand, e.QuantityReserved)
	}
}

func (f *fixture) assertReconciled(t *testing.T, productID, warehouseID int64) {
	t.Helper()
	r, err := f.inv.Reconcile(f.ctx, productID, warehouseID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !r.Consistent {
		t.Errorf("ledger and movement log disagree: %+v", r)
	}
}
