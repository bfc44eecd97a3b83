package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"warehouse-ledger/internal/ai"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
)

type stubAssistant struct {
	resp *core.AssistantResponse
	err  error
	text string
}

func (s *stubAssistant) Propose(_ context.Context, text string, tools *ai.ToolRegistry) (*core.AssistantResponse, error) {
	s.text = text
	if tools == nil {
		return nil, errors.New("no tools")
	}
	return s.resp, s.err
}

func newApp(t *testing.T, timeout time.Duration, assistant ai.StockAssistant) (app.ApplicationService, context.Context) {
	t.Helper()
	st := memory.New()
	st.AddProduct(core.Product{ID: 1, SKU: "WID-001", Name: "Widget", UnitPrice: decimal.NewFromInt(25), CostPrice: decimal.NewFromInt(10), ReorderLevel: 5, IsActive: true})
	st.AddWarehouse(core.Warehouse{ID: 1, Name: "Main", IsActive: true})
	st.AddWarehouse(core.Warehouse{ID: 2, Name: "Overflow", IsActive: true})
	deps := core.Deps{Store: st, Catalog: st, Facilities: st}
	svc := app.NewAppService(app.Services{
		Inventory:      core.NewInventoryService(deps),
		PurchaseOrders: core.NewPurchaseOrderService(deps),
		SalesOrders:    core.NewSalesOrderService(deps),
		Catalog:        st,
		Products:       st,
		Assistant:      assistant,
	}, timeout, nil)
	return svc, core.WithActor(context.Background(), "app-tester")
}

func TestAppService_PurchaseToSale(t *testing.T) {
	svc, ctx := newApp(t, time.Second, nil)

	po, err := svc.CreatePurchaseOrder(ctx, app.CreatePurchaseOrderRequest{
		SupplierID:   3,
		WarehouseID:  1,
		ExpectedDate: "2026-04-01",
		Lines:        []app.POLineInput{{ProductID: 1, Quantity: 40, UnitCost: decimal.NewFromInt(10)}},
	})
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	if po.PurchaseOrder.ExpectedDate == nil || po.PurchaseOrder.ExpectedDate.Month() != time.April {
		t.Errorf("expected parsed expected date, got %v", po.PurchaseOrder.ExpectedDate)
	}
	id := po.PurchaseOrder.ID
	if _, err := svc.ApprovePurchaseOrder(ctx, id); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if _, err := svc.ReceivePurchaseOrder(ctx, app.ReceivePORequest{
		PurchaseOrderID: id,
		Lines:           []core.ReceiptLine{{LineID: po.PurchaseOrder.Items[0].ID, ReceivedQty: 40}},
	}); err != nil {
		t.Fatalf("Receive failed: %v", err)
	}

	so, err := svc.CreateSalesOrder(ctx, app.CreateSalesOrderRequest{
		CustomerID:  9,
		WarehouseID: 1,
		Lines:       []app.SOLineInput{{ProductID: 1, Quantity: 15, UnitPrice: decimal.NewFromInt(25)}},
	})
	if err != nil {
		t.Fatalf("CreateSalesOrder failed: %v", err)
	}
	if _, err := svc.BeginProcessing(ctx, so.SalesOrder.ID); err != nil {
		t.Fatalf("BeginProcessing failed: %v", err)
	}
	shipped, err := svc.ShipSalesOrder(ctx, app.ShipOrderRequest{SalesOrderID: so.SalesOrder.ID, Carrier: "DHL"})
	if err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if shipped.SalesOrder.Status != core.SOShipped || shipped.SalesOrder.Shipments[0].CreatedBy != "app-tester" {
		t.Errorf("unexpected shipped order: %+v", shipped.SalesOrder)
	}

	stock, err := svc.GetStock(ctx, 1, 1)
	if err != nil {
		t.Fatalf("GetStock failed: %v", err)
	}
	if stock.Entry.QuantityOnHand != 25 || stock.Entry.QuantityReserved != 0 {
		t.Errorf("expected 25/0, got %d/%d", stock.Entry.QuantityOnHand, stock.Entry.QuantityReserved)
	}
	moves, err := svc.ListMovements(ctx, core.MovementFilter{ProductID: 1, Limit: 1})
	if err != nil {
		t.Fatalf("ListMovements failed: %v", err)
	}
	if len(moves.Movements) != 1 || moves.Movements[0].MovementType != core.MovementOut {
		t.Errorf("expected latest movement OUT, got %+v", moves.Movements)
	}
	pos, _ := svc.ListPurchaseOrders(ctx, core.OrderFilter{Status: string(core.POReceived)})
	sos, _ := svc.ListSalesOrders(ctx, core.OrderFilter{Status: string(core.SOShipped)})
	if len(pos.PurchaseOrders) != 1 || len(sos.SalesOrders) != 1 {
		t.Errorf("unexpected listings: %d POs, %d SOs", len(pos.PurchaseOrders), len(sos.SalesOrders))
	}
}

func TestAppService_BadDate(t *testing.T) {
	svc, ctx := newApp(t, time.Second, nil)
	_, err := svc.CreateSalesOrder(ctx, app.CreateSalesOrderRequest{CustomerID: 1, WarehouseID: 1, RequiredDate: "04/01/2026",
		Lines: []app.SOLineInput{{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)}}})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestAppService_OperationTimeout(t *testing.T) {
	svc, ctx := newApp(t, time.Nanosecond, nil)
	time.Sleep(time.Millisecond)

	_, err := svc.AdjustStock(ctx, app.AdjustStockRequest{ProductID: 1, WarehouseID: 1, Quantity: 5})
	if !errors.Is(err, core.ErrOperationTimeout) {
		t.Fatalf("expected ErrOperationTimeout, got %v", err)
	}

	relaxed, rctx := newApp(t, 0, nil)
	got, err := relaxed.GetStock(rctx, 1, 1)
	if err != nil || got.Entry.QuantityOnHand != 0 {
		t.Errorf("expected untouched zero entry, got %+v %v", got, err)
	}
}

func TestAppService_StockAssistant(t *testing.T) {
	t.Run("Unavailable", func(t *testing.T) {
		svc, ctx := newApp(t, time.Second, nil)
		if _, err := svc.InterpretStockEvent(ctx, "lost two widgets"); !errors.Is(err, app.ErrAssistantUnavailable) {
			t.Errorf("expected ErrAssistantUnavailable, got %v", err)
		}
	})

	t.Run("Clarification", func(t *testing.T) {
		stub := &stubAssistant{resp: &core.AssistantResponse{
			IsClarificationRequest: true,
			Clarification:          &core.ClarificationRequest{Message: "Which warehouse?"},
		}}
		svc, ctx := newApp(t, time.Second, stub)
		res, err := svc.InterpretStockEvent(ctx, "lost two widgets")
		if err != nil {
			t.Fatalf("InterpretStockEvent failed: %v", err)
		}
		if !res.IsClarification || res.ClarificationMessage != "Which warehouse?" || stub.text != "lost two widgets" {
			t.Errorf("unexpected result: %+v", res)
		}
	})

	t.Run("ProposeThenExecute", func(t *testing.T) {
		proposal := &core.StockActionProposal{Action: core.ActionAdjust, SKU: "WID-001", WarehouseID: 1, Quantity: 8, Reason: "found pallet", Confidence: 0.9}
		svc, ctx := newApp(t, time.Second, &stubAssistant{resp: &core.AssistantResponse{Proposal: proposal}})
		res, err := svc.InterpretStockEvent(ctx, "found a pallet of widgets")
		if err != nil {
			t.Fatalf("InterpretStockEvent failed: %v", err)
		}
		if res.Proposal == nil {
			t.Fatal("expected proposal")
		}

		done, err := svc.ExecuteStockAction(ctx, *res.Proposal)
		if err != nil {
			t.Fatalf("ExecuteStockAction adjust failed: %v", err)
		}
		if done.Entry == nil || done.Entry.QuantityOnHand != 8 {
			t.Errorf("unexpected adjust result: %+v", done)
		}

		moved, err := svc.ExecuteStockAction(ctx, core.StockActionProposal{Action: "move", SKU: "wid-001", WarehouseID: 1, ToWarehouseID: 2, Quantity: 3, Confidence: 0.7})
		if err != nil {
			t.Fatalf("ExecuteStockAction transfer failed: %v", err)
		}
		if moved.Transfer == nil || moved.Transfer.To.QuantityOnHand != 3 || moved.Transfer.From.QuantityOnHand != 5 {
			t.Errorf("unexpected transfer result: %+v", moved)
		}

		if _, err := svc.ExecuteStockAction(ctx, core.StockActionProposal{Action: core.ActionAdjust, SKU: "NOPE-1", WarehouseID: 1, Quantity: 1}); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown SKU, got %v", err)
		}
		if _, err := svc.ExecuteStockAction(ctx, core.StockActionProposal{Action: core.ActionTransfer, SKU: "WID-001", WarehouseID: 1, ToWarehouseID: 2, Quantity: 50}); !errors.Is(err, core.ErrInsufficientStock) {
			t.Errorf("expected ErrInsufficientStock, got %v", err)
		}
	})
}
