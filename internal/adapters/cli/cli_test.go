package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"warehouse-ledger/internal/adapters/cli"
	"warehouse-ledger/internal/ai"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/store/memory"

	"github.com/shopspring/decimal"
)

// scriptedAssistant returns its responses in order, one per call.
type scriptedAssistant struct {
	responses []*core.AssistantResponse
	texts     []string
}

func (s *scriptedAssistant) Propose(_ context.Context, text string, _ *ai.ToolRegistry) (*core.AssistantResponse, error) {
	s.texts = append(s.texts, text)
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func newService(t *testing.T, assistant ai.StockAssistant) (app.ApplicationService, context.Context) {
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
	}, time.Second, nil)
	return svc, core.WithActor(context.Background(), "cli-tester")
}

func run(t *testing.T, ctx context.Context, svc app.ApplicationService, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := cli.Run(ctx, svc, args, strings.NewReader(stdin), &out)
	return out.String(), err
}

func TestRun_StockCommands(t *testing.T) {
	svc, ctx := newService(t, nil)

	if _, err := run(t, ctx, svc, "", "adjust", "1", "1", "20", "opening", "count"); err != nil {
		t.Fatalf("adjust failed: %v", err)
	}
	out, err := run(t, ctx, svc, "", "transfer", "1", "1", "2", "8")
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	var tr core.TransferResult
	if err := json.Unmarshal([]byte(out), &tr); err != nil {
		t.Fatalf("transfer output is not JSON: %v", err)
	}
	if tr.From.QuantityOnHand != 12 || tr.To.QuantityOnHand != 8 {
		t.Errorf("expected 12/8 split, got %+v", tr)
	}

	out, err = run(t, ctx, svc, "", "movements", "1", "1")
	if err != nil {
		t.Fatalf("movements failed: %v", err)
	}
	var ml app.MovementListResult
	_ = json.Unmarshal([]byte(out), &ml)
	if len(ml.Movements) != 2 || ml.Movements[1].Notes != "opening count" {
		t.Errorf("expected 2 movements with joined reason, got %+v", ml.Movements)
	}

	out, err = run(t, ctx, svc, "", "stock", "2")
	if err != nil {
		t.Fatalf("stock failed: %v", err)
	}
	var sr app.StockResult
	_ = json.Unmarshal([]byte(out), &sr)
	if len(sr.Levels) != 1 || sr.Levels[0].QuantityOnHand != 8 {
		t.Errorf("expected one level with 8 on hand in warehouse 2, got %+v", sr.Levels)
	}

	if _, err := run(t, ctx, svc, "", "transfer", "1", "1", "2", "500"); !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
}

func TestRun_Usage(t *testing.T) {
	svc, ctx := newService(t, nil)
	tests := []struct {
		name string
		args []string
	}{
		{"NoArgs", nil},
		{"Unknown", []string{"balances"}},
		{"MissingIDs", []string{"entry", "1"}},
		{"NonNumeric", []string{"adjust", "one", "1", "5"}},
		{"UnknownPOAction", []string{"po", "ship", "1"}},
		{"ProposeWithoutText", []string{"propose"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, ctx, svc, "", tt.args...); !errors.Is(err, cli.ErrUsage) {
				t.Errorf("expected ErrUsage, got %v", err)
			}
		})
	}
}

func TestRun_Orders(t *testing.T) {
	svc, ctx := newService(t, nil)

	out, err := run(t, ctx, svc, `{"supplier_id":2,"warehouse_id":1,"lines":[{"product_id":1,"quantity":10,"unit_cost":"4.5"}]}`, "po", "create")
	if err != nil {
		t.Fatalf("po create failed: %v", err)
	}
	var po app.PurchaseOrderResult
	_ = json.Unmarshal([]byte(out), &po)
	if po.PurchaseOrder == nil || !po.PurchaseOrder.TotalAmount.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("expected PO with total 45, got %s", out)
	}
	if _, err := run(t, ctx, svc, "", "po", "approve", "1"); err != nil {
		t.Fatalf("po approve failed: %v", err)
	}
	lineID := po.PurchaseOrder.Items[0].ID
	receipt, _ := json.Marshal(map[string]any{"lines": []core.ReceiptLine{{LineID: lineID, ReceivedQty: 10}}})
	if _, err := run(t, ctx, svc, string(receipt), "po", "receive", "1"); err != nil {
		t.Fatalf("po receive failed: %v", err)
	}

	if _, err := run(t, ctx, svc, `{"customer_id":3,"warehouse_id":1,"lines":[{"product_id":1,"quantity":4,"unit_price":"25"}]}`, "so", "create"); err != nil {
		t.Fatalf("so create failed: %v", err)
	}
	out, err = run(t, ctx, svc, "", "so", "ship", "1", "UPS", "1Z999")
	if err != nil {
		t.Fatalf("so ship failed: %v", err)
	}
	var so app.SalesOrderResult
	_ = json.Unmarshal([]byte(out), &so)
	if so.SalesOrder == nil || so.SalesOrder.Status != core.SOShipped {
		t.Fatalf("expected Shipped SO, got %s", out)
	}
	if len(so.SalesOrder.Shipments) != 1 || so.SalesOrder.Shipments[0].Carrier != "UPS" {
		t.Errorf("expected UPS shipment, got %+v", so.SalesOrder.Shipments)
	}

	if _, err := run(t, ctx, svc, "", "so", "cancel", "1"); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition cancelling a Shipped SO, got %v", err)
	}
	if _, err := run(t, ctx, svc, "not json", "po", "create"); err == nil {
		t.Error("expected error for malformed stdin")
	}
}

func TestRun_Assist(t *testing.T) {
	proposal := &core.StockActionProposal{Action: core.ActionTransfer, SKU: "WID-001", WarehouseID: 1, ToWarehouseID: 2, Quantity: 3, Reason: "rebalance", Confidence: 0.95}

	t.Run("ClarifyThenConfirm", func(t *testing.T) {
		assistant := &scriptedAssistant{responses: []*core.AssistantResponse{
			{IsClarificationRequest: true, Clarification: &core.ClarificationRequest{Message: "Which warehouse?"}},
			{Proposal: proposal},
		}}
		svc, ctx := newService(t, assistant)
		if _, err := run(t, ctx, svc, "", "adjust", "1", "1", "10", "seed"); err != nil {
			t.Fatalf("adjust failed: %v", err)
		}

		out, err := run(t, ctx, svc, "from Main to Overflow\ny\n", "assist", "move 3 widgets")
		if err != nil {
			t.Fatalf("assist failed: %v", err)
		}
		if !strings.Contains(out, "Which warehouse?") || !strings.Contains(out, "WAREHOUSE:  1 -> 2") {
			t.Errorf("expected clarification and proposal in output, got %s", out)
		}
		if len(assistant.texts) != 2 || !strings.Contains(assistant.texts[1], "from Main to Overflow") {
			t.Errorf("expected follow-up to carry the answer, got %q", assistant.texts)
		}
		entry, _ := svc.GetStock(ctx, 1, 2)
		if entry.Entry.QuantityOnHand != 3 {
			t.Errorf("expected 3 transferred, got %d", entry.Entry.QuantityOnHand)
		}
	})

	t.Run("Declined", func(t *testing.T) {
		svc, ctx := newService(t, &scriptedAssistant{responses: []*core.AssistantResponse{{Proposal: proposal}}})
		out, err := run(t, ctx, svc, "n\n", "assist", "move 3 widgets")
		if err != nil {
			t.Fatalf("assist failed: %v", err)
		}
		if !strings.Contains(out, "Cancelled.") {
			t.Errorf("expected cancellation, got %s", out)
		}
		entry, _ := svc.GetStock(ctx, 1, 2)
		if entry.Entry.QuantityOnHand != 0 {
			t.Errorf("declined proposal changed stock: %+v", entry.Entry)
		}
	})
}
