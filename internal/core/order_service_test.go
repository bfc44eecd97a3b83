package core_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"warehouse-ledger/internal/core"

	"golang.org/x/sync/errgroup"
)

func soInput(items ...core.SalesOrderItemInput) core.CreateSalesOrderInput {
	return core.CreateSalesOrderInput{
		CustomerID:      3,
		WarehouseID:     warehouse1,
		ShippingAddress: "1 Dock Road",
		Items:           items,
	}
}

func TestSalesOrder_ShipScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productY, warehouse1, 50)

	so, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productY, Quantity: 20, UnitPrice: dec("40")}))
	if err != nil {
		t.Fatalf("Create SO failed: %v", err)
	}
	if so.SONumber != "SO-2026-0001" || so.Status != core.SOPending {
		t.Errorf("expected SO-2026-0001 Pending, got %s %s", so.SONumber, so.Status)
	}
	e := f.entry(t, productY, warehouse1)
	if e.QuantityReserved != 20 || e.Available() != 30 {
		t.Errorf("expected reserved 20 available 30, got %+v", e)
	}

	so, err = f.sos.Ship(f.ctx, so.ID, core.ShipInput{Carrier: "DHL", TrackingNumber: "TRK-1", ProcessedBy: "picker"})
	if err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if so.Status != core.SOShipped || len(so.Shipments) != 1 {
		t.Fatalf("expected Shipped with one shipment, got %s %d", so.Status, len(so.Shipments))
	}
	sh := so.Shipments[0]
	if sh.Status != core.ShipmentShipped || sh.ShipmentDate == nil || sh.Carrier != "DHL" || sh.ID == 0 {
		t.Errorf("unexpected shipment: %+v", sh)
	}
	f.assertStock(t, productY, warehouse1, 30, 0)

	if _, err := f.sos.Cancel(f.ctx, so.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition cancelling a Shipped SO, got %v", err)
	}
	if _, err := f.sos.Ship(f.ctx, so.ID, core.ShipInput{}); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition shipping twice, got %v", err)
	}
	f.assertStock(t, productY, warehouse1, 30, 0)

	f.clock.Set(f.clock.Now().Add(48 * time.Hour))
	so, err = f.sos.Deliver(f.ctx, so.ID)
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if so.Status != core.SODelivered {
		t.Errorf("expected Delivered, got %s", so.Status)
	}
	stored, err := f.sos.Get(f.ctx, so.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if d := stored.Shipments[0].DeliveryDate; stored.Shipments[0].Status != core.ShipmentDelivered || d == nil || !d.Equal(f.clock.Now()) {
		t.Errorf("expected shipment delivered at %v, got %+v", f.clock.Now(), stored.Shipments[0])
	}
	if _, err := f.sos.Deliver(f.ctx, so.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition delivering twice, got %v", err)
	}
	f.assertReconciled(t, productY, warehouse1)
}

func TestSalesOrder_CreateIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouse1, 100)
	f.seed(t, productY, warehouse1, 5)

	_, err := f.sos.Create(f.ctx, soInput(
		core.SalesOrderItemInput{ProductID: productX, Quantity: 60, UnitPrice: dec("25")},
		core.SalesOrderItemInput{ProductID: productY, Quantity: 6, UnitPrice: dec("40")},
	))
	var ise *core.InsufficientStockError
	if !errors.As(err, &ise) || ise.Key.ProductID != productY {
		t.Fatalf("expected InsufficientStockError on product Y, got %v", err)
	}
	f.assertStock(t, productX, warehouse1, 100, 0)
	f.assertStock(t, productY, warehouse1, 5, 0)

	t.Run("DuplicateLinesCountTogether", func(t *testing.T) {
		_, err := f.sos.Create(f.ctx, soInput(
			core.SalesOrderItemInput{ProductID: productY, Quantity: 3, UnitPrice: dec("40")},
			core.SalesOrderItemInput{ProductID: productY, Quantity: 3, UnitPrice: dec("40")},
		))
		if !errors.Is(err, core.ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", err)
		}
		f.assertStock(t, productY, warehouse1, 5, 0)
	})

	// Failed creates leave no gap in numbering.
	so, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productX, Quantity: 1, UnitPrice: dec("25")}))
	if err != nil {
		t.Fatalf("Create SO failed: %v", err)
	}
	if so.SONumber != "SO-2026-0001" {
		t.Errorf("expected SO-2026-0001, got %s", so.SONumber)
	}
	f.assertReconciled(t, productX, warehouse1)
	f.assertReconciled(t, productY, warehouse1)
}

func TestSalesOrder_CancelReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouse1, 40)
	f.seed(t, productY, warehouse1, 10)
	before := f.entry(t, productX, warehouse1).Available()

	so, err := f.sos.Create(f.ctx, soInput(
		core.SalesOrderItemInput{ProductID: productX, Quantity: 15, UnitPrice: dec("25")},
		core.SalesOrderItemInput{ProductID: productY, Quantity: 10, UnitPrice: dec("40")},
	))
	if err != nil {
		t.Fatalf("Create SO failed: %v", err)
	}

	t.Run("FromPending", func(t *testing.T) {
		got, err := f.sos.Cancel(f.ctx, so.ID)
		if err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if got.Status != core.SOCancelled {
			t.Errorf("expected Cancelled, got %s", got.Status)
		}
		if after := f.entry(t, productX, warehouse1).Available(); after != before {
			t.Errorf("expected available %d restored, got %d", before, after)
		}
		f.assertStock(t, productY, warehouse1, 10, 0)
		if _, err := f.sos.Cancel(f.ctx, so.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
			t.Errorf("expected ErrInvalidStateTransition on double cancel, got %v", err)
		}
	})

	t.Run("FromProcessing", func(t *testing.T) {
		so, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productX, Quantity: 5, UnitPrice: dec("25")}))
		if err != nil {
			t.Fatalf("Create SO failed: %v", err)
		}
		got, err := f.sos.BeginProcessing(f.ctx, so.ID)
		if err != nil {
			t.Fatalf("BeginProcessing failed: %v", err)
		}
		if got.Status != core.SOProcessing {
			t.Errorf("expected Processing, got %s", got.Status)
		}
		f.assertStock(t, productX, warehouse1, 40, 5)
		if _, err := f.sos.BeginProcessing(f.ctx, so.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
			t.Errorf("expected ErrInvalidStateTransition, got %v", err)
		}
		if _, err := f.sos.Cancel(f.ctx, so.ID); err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		f.assertStock(t, productX, warehouse1, 40, 0)
	})

	ms, err := f.inv.ListMovements(f.ctx, core.MovementFilter{ProductID: productX, ReferenceType: core.RefSalesOrder, ReferenceID: so.SONumber})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(ms) != 2 || ms[0].MovementType != core.MovementRelease || ms[1].MovementType != core.MovementReserve {
		t.Errorf("expected RELEASE then RESERVE (newest first), got %+v", ms)
	}
	f.assertReconciled(t, productX, warehouse1)
}

func TestSalesOrder_TotalsAndValidation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouse1, 10)

	so, err := f.sos.Create(f.ctx, soInput(
		core.SalesOrderItemInput{ProductID: productX, Quantity: 3, UnitPrice: dec("19.99"), Discount: dec("10")},
		core.SalesOrderItemInput{ProductID: productX, Quantity: 1, UnitPrice: dec("5"), Discount: dec("100")},
	))
	if err != nil {
		t.Fatalf("Create SO failed: %v", err)
	}
	// 3 x 19.99 x 0.9 = 53.973
	if !so.TotalAmount.Equal(dec("53.97")) {
		t.Errorf("expected total 53.97, got %s", so.TotalAmount)
	}

	bad := []core.SalesOrderItemInput{
		{ProductID: productX, Quantity: 0, UnitPrice: dec("1")},
		{ProductID: productX, Quantity: 1, UnitPrice: dec("-1")},
		{ProductID: productX, Quantity: 1, UnitPrice: dec("1"), Discount: dec("100.5")},
		{ProductID: productX, Quantity: 1, UnitPrice: dec("1"), Discount: dec("-1")},
	}
	for _, it := range bad {
		if _, err := f.sos.Create(f.ctx, soInput(it)); !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected ErrValidation for %+v, got %v", it, err)
		}
	}
	if _, err := f.sos.Create(f.ctx, soInput()); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for empty order, got %v", err)
	}
	if _, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productInactive, Quantity: 1, UnitPrice: dec("1")})); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation for inactive product, got %v", err)
	}
	if _, err := f.sos.Deliver(f.ctx, so.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition delivering a Pending SO, got %v", err)
	}
	if _, err := f.sos.Get(f.ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSalesOrder_NumberingUnderConcurrencyAndYearRollover(t *testing.T) {
	f := newFixture(t)
	f.seed(t, productX, warehouse1, 1000)

	var mu sync.Mutex
	seen := make(map[string]bool)
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			so, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productX, Quantity: 2, UnitPrice: dec("25")}))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[so.SONumber] {
				t.Errorf("duplicate order number %s", so.SONumber)
			}
			seen[so.SONumber] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent create failed: %v", err)
	}
	for i := int64(1); i <= 25; i++ {
		if n := core.FormatOrderNumber("SO", 2026, i); !seen[n] {
			t.Errorf("expected %s to be allocated", n)
		}
	}
	f.assertStock(t, productX, warehouse1, 1000, 50)

	f.clock.Set(time.Date(2027, 1, 1, 0, 0, 1, 0, time.UTC))
	so, err := f.sos.Create(f.ctx, soInput(core.SalesOrderItemInput{ProductID: productX, Quantity: 1, UnitPrice: dec("25")}))
	if err != nil {
		t.Fatalf("Create SO failed: %v", err)
	}
	if so.SONumber != "SO-2027-0001" {
		t.Errorf("expected counter reset for 2027, got %s", so.SONumber)
	}
	po := createPO(t, f, core.PurchaseOrderItemInput{ProductID: productX, Quantity: 1, UnitCost: dec("1")})
	if po.PONumber != "PO-2027-0001" {
		t.Errorf("expected PO counter independent of SO, got %s", po.PONumber)
	}
}

func TestFormatOrderNumber(t *testing.T) {
	tests := []struct {
		prefix string
		year   int
		seq    int64
		want   string
	}{
		{"PO", 2026, 1, "PO-2026-0001"},
		{"SO", 2026, 42, "SO-2026-0042"},
		{"SO", 2031, 12345, "SO-2031-12345"},
	}
	for _, tt := range tests {
		if got := core.FormatOrderNumber(tt.prefix, tt.year, tt.seq); got != tt.want {
			t.Errorf("FormatOrderNumber(%q, %d, %d) = %q, want %q", tt.prefix, tt.year, tt.seq, got, tt.want)
		}
	}
}
