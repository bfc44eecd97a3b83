package core_test

import (
	"errors"
	"testing"

	"warehouse-ledger/internal/core"
)

func createPO(t *testing.T, f *fixture, items ...core.PurchaseOrderItemInput) *core.PurchaseOrder {
	t.Helper()
	po, err := f.pos.Create(f.ctx, core.CreatePurchaseOrderInput{
		SupplierID:  7,
		WarehouseID: warehouse1,
		Notes:       "restock",
		Items:       items,
	})
	if err != nil {
		t.Fatalf("Create PO failed: %v", err)
	}
	return po
}

func TestPurchaseOrder_Lifecycle(t *testing.T) {
	f := newFixture(t)

	po := createPO(t, f, core.PurchaseOrderItemInput{ProductID: productX, Quantity: 100, UnitCost: dec("10")})
	if po.PONumber != "PO-2026-0001" {
		t.Errorf("expected PO-2026-0001, got %s", po.PONumber)
	}
	if po.Status != core.POPending || !po.TotalAmount.Equal(dec("1000")) {
		t.Errorf("expected Pending with total 1000, got %s %s", po.Status, po.TotalAmount)
	}
	if po.CreatedBy != "tester" {
		t.Errorf("expected creator from context, got %q", po.CreatedBy)
	}
	f.assertStock(t, productX, warehouse1, 0, 0)

	if _, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: po.Items[0].ID, ReceivedQty: 1}}, "clerk"); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition receiving a Pending PO, got %v", err)
	}

	po, err := f.pos.Approve(f.ctx, po.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if po.Status != core.POApproved {
		t.Errorf("expected Approved, got %s", po.Status)
	}
	if _, err := f.pos.Approve(f.ctx, po.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition on double approve, got %v", err)
	}

	po, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: po.Items[0].ID, ReceivedQty: 100}}, "clerk")
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if po.Status != core.POReceived || po.Items[0].ReceivedQuantity != 100 {
		t.Errorf("expected Received with 100 received, got %s %d", po.Status, po.Items[0].ReceivedQuantity)
	}
	f.assertStock(t, productX, warehouse1, 100, 0)

	ms, err := f.inv.ListMovements(f.ctx, core.MovementFilter{ReferenceType: core.RefPurchaseOrder, ReferenceID: po.PONumber})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(ms) != 1 || ms[0].MovementType != core.MovementIn || ms[0].CreatedBy != "clerk" {
		t.Errorf("expected one IN movement by clerk, got %+v", ms)
	}

	_, err = f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: po.Items[0].ID, ReceivedQty: 1}}, "clerk")
	var ste *core.InvalidStateTransitionError
	if !errors.As(err, &ste) || ste.From != string(core.POReceived) {
		t.Errorf("expected InvalidStateTransitionError from Received, got %v", err)
	}
	if _, err := f.pos.Cancel(f.ctx, po.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition cancelling a Received PO, got %v", err)
	}

	transitions := f.events.ofType("order.status_changed")
	if len(transitions) != 3 {
		t.Errorf("expected 3 status events (created, approved, received), got %d", len(transitions))
	}
	f.assertReconciled(t, productX, warehouse1)
}

func TestPurchaseOrder_PartialReceipt(t *testing.T) {
	f := newFixture(t)
	po := createPO(t, f,
		core.PurchaseOrderItemInput{ProductID: productX, Quantity: 10, UnitCost: dec("10")},
		core.PurchaseOrderItemInput{ProductID: productY, Quantity: 4, UnitCost: dec("18.25")},
	)
	if !po.TotalAmount.Equal(dec("173")) {
		t.Errorf("expected total 173, got %s", po.TotalAmount)
	}
	if _, err := f.pos.Approve(f.ctx, po.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	lineX, lineY := po.Items[0].ID, po.Items[1].ID

	t.Run("FirstHalf_StaysApproved", func(t *testing.T) {
		got, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: lineX, ReceivedQty: 5}}, "")
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got.Status != core.POApproved || got.Items[0].ReceivedQuantity != 5 {
			t.Errorf("expected Approved with 5 received, got %s %d", got.Status, got.Items[0].ReceivedQuantity)
		}
		f.assertStock(t, productX, warehouse1, 5, 0)
	})

	t.Run("OverReceipt_RejectsWholeBatch", func(t *testing.T) {
		_, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{
			{LineID: lineY, ReceivedQty: 4},
			{LineID: lineX, ReceivedQty: 3},
			{LineID: lineX, ReceivedQty: 3},
		}, "")
		var ore *core.OverReceiptError
		if !errors.As(err, &ore) {
			t.Fatalf("expected OverReceiptError, got %v", err)
		}
		if len(ore.Lines) != 1 || ore.Lines[0].LineID != lineX || ore.Lines[0].Requested != 6 || ore.Lines[0].Received != 5 {
			t.Errorf("unexpected over receipt detail: %+v", ore.Lines)
		}
		f.assertStock(t, productX, warehouse1, 5, 0)
		f.assertStock(t, productY, warehouse1, 0, 0)
		got, _ := f.pos.Get(f.ctx, po.ID)
		if got.Items[1].ReceivedQuantity != 0 {
			t.Errorf("rejected batch updated line Y: %+v", got.Items[1])
		}
	})

	t.Run("UnknownLine_NotFound", func(t *testing.T) {
		_, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: lineY, ReceivedQty: 1}, {LineID: 9999, ReceivedQty: 1}}, "")
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		f.assertStock(t, productY, warehouse1, 0, 0)
	})

	t.Run("NonPositiveQuantity_Validation", func(t *testing.T) {
		_, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: lineX, ReceivedQty: 0}, {LineID: lineY, ReceivedQty: -1}}, "")
		var ve *core.ValidationError
		if !errors.As(err, &ve) || len(ve.Problems) != 2 {
			t.Errorf("expected ValidationError with 2 problems, got %v", err)
		}
		if _, err := f.pos.Receive(f.ctx, po.ID, nil, ""); !errors.Is(err, core.ErrValidation) {
			t.Errorf("expected ErrValidation for empty receipt, got %v", err)
		}
	})

	t.Run("Remainder_CompletesOrder", func(t *testing.T) {
		got, err := f.pos.Receive(f.ctx, po.ID, []core.ReceiptLine{{LineID: lineX, ReceivedQty: 5}, {LineID: lineY, ReceivedQty: 4}}, "")
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if got.Status != core.POReceived {
			t.Errorf("expected Received, got %s", got.Status)
		}
		f.assertStock(t, productX, warehouse1, 10, 0)
		f.assertStock(t, productY, warehouse1, 4, 0)
	})
}

func TestPurchaseOrder_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   core.CreatePurchaseOrderInput
		want error
	}{
		{"NoItems", core.CreatePurchaseOrderInput{SupplierID: 1, WarehouseID: warehouse1}, core.ErrValidation},
		{"ZeroQuantity", core.CreatePurchaseOrderInput{SupplierID: 1, WarehouseID: warehouse1,
			Items: []core.PurchaseOrderItemInput{{ProductID: productX, Quantity: 0, UnitCost: dec("1")}}}, core.ErrValidation},
		{"NegativeCost", core.CreatePurchaseOrderInput{SupplierID: 1, WarehouseID: warehouse1,
			Items: []core.PurchaseOrderItemInput{{ProductID: productX, Quantity: 1, UnitCost: dec("-1")}}}, core.ErrValidation},
		{"MissingSupplier", core.CreatePurchaseOrderInput{WarehouseID: warehouse1,
			Items: []core.PurchaseOrderItemInput{{ProductID: productX, Quantity: 1, UnitCost: dec("1")}}}, core.ErrValidation},
		{"UnknownWarehouse", core.CreatePurchaseOrderInput{SupplierID: 1, WarehouseID: 404,
			Items: []core.PurchaseOrderItemInput{{ProductID: productX, Quantity: 1, UnitCost: dec("1")}}}, core.ErrNotFound},
		{"UnknownProduct", core.CreatePurchaseOrderInput{SupplierID: 1, WarehouseID: warehouse1,
			Items: []core.PurchaseOrderItemInput{{ProductID: 404, Quantity: 1, UnitCost: dec("1")}}}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.pos.Create(f.ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	// Rejected creates consume no numbers.
	po := createPO(t, f, core.PurchaseOrderItemInput{ProductID: productX, Quantity: 1, UnitCost: dec("0")})
	if po.PONumber != "PO-2026-0001" {
		t.Errorf("expected PO-2026-0001 after rejected creates, got %s", po.PONumber)
	}
}

func TestPurchaseOrder_CancelAndList(t *testing.T) {
	f := newFixture(t)
	item := core.PurchaseOrderItemInput{ProductID: productX, Quantity: 2, UnitCost: dec("3")}
	a := createPO(t, f, item)
	b := createPO(t, f, item)
	if b.PONumber != "PO-2026-0002" {
		t.Errorf("expected PO-2026-0002, got %s", b.PONumber)
	}

	if _, err := f.pos.Cancel(f.ctx, a.ID); err != nil {
		t.Fatalf("Cancel Pending failed: %v", err)
	}
	if _, err := f.pos.Approve(f.ctx, b.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := f.pos.Cancel(f.ctx, b.ID); err != nil {
		t.Fatalf("Cancel Approved failed: %v", err)
	}
	if _, err := f.pos.Approve(f.ctx, a.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition approving a Cancelled PO, got %v", err)
	}
	if _, err := f.pos.Approve(f.ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	cancelled, err := f.pos.List(f.ctx, core.OrderFilter{Status: string(core.POCancelled)})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(cancelled) != 2 || cancelled[0].ID != b.ID {
		t.Errorf("expected both POs newest first, got %+v", cancelled)
	}
	other, _ := f.pos.List(f.ctx, core.OrderFilter{PartyID: 99})
	if len(other) != 0 {
		t.Errorf("expected no POs for supplier 99, got %d", len(other))
	}
}
