package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/core"
)

// Usage lists the available subcommands.
const Usage = `Usage: app <command> [args]

  stock [warehouse_id] [--low]                 list stock levels
  entry <product_id> <warehouse_id>            show one ledger entry
  movements <product_id> <warehouse_id>        movement history, newest first
  reconcile <product_id> <warehouse_id>        compare ledger with movement log
  adjust <product_id> <warehouse_id> <qty> <reason...>
  transfer <product_id> <from_id> <to_id> <qty> [notes...]
  po create|receive <id>                       JSON body on stdin
  po approve|cancel|get <id>
  po list [status]
  so create                                    JSON body on stdin
  so processing|ship|deliver|cancel|get <id>
  so list [status]
  propose "<text>"                             ask the stock assistant
  execute                                      apply a proposal read from stdin
  assist "<text>"                              propose, clarify and confirm interactively`

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("invalid usage")

// Run executes a one-shot CLI command. args is os.Args[1:]; the first element is
// the subcommand name. Request bodies and confirmations are read from in, results
// are written to out as indented JSON.
func Run(ctx context.Context, svc app.ApplicationService, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	c := &runner{svc: svc, in: in, out: out}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "stock":
		return c.stock(ctx, rest)
	case "entry":
		return c.keyed(rest, func(p, w int64) (any, error) { return svc.GetStock(ctx, p, w) })
	case "movements":
		return c.keyed(rest, func(p, w int64) (any, error) {
			return svc.ListMovements(ctx, core.MovementFilter{ProductID: p, WarehouseID: w})
		})
	case "reconcile":
		return c.keyed(rest, func(p, w int64) (any, error) { return svc.ReconcileStock(ctx, p, w) })
	case "adjust":
		return c.adjust(ctx, rest)
	case "transfer":
		return c.transfer(ctx, rest)
	case "po":
		return c.purchaseOrder(ctx, rest)
	case "so":
		return c.salesOrder(ctx, rest)
	case "propose", "prop", "p":
		if len(rest) < 1 {
			return fmt.Errorf("%w: app propose \"<text>\"", ErrUsage)
		}
		return c.print(svc.InterpretStockEvent(ctx, rest[0]))
	case "execute", "exec":
		var proposal core.StockActionProposal
		if err := c.decode(&proposal); err != nil {
			return err
		}
		return c.print(svc.ExecuteStockAction(ctx, proposal))
	case "assist":
		if len(rest) < 1 {
			return fmt.Errorf("%w: app assist \"<text>\"", ErrUsage)
		}
		return c.assist(ctx, rest[0])
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

type runner struct {
	svc app.ApplicationService
	in  io.Reader
	out io.Writer
}

func (c *runner) print(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *runner) decode(v any) error {
	if err := json.NewDecoder(c.in).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON on stdin: %w", err)
	}
	return nil
}

func parseIDs(args []string, names ...string) ([]int64, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%w: expected %s", ErrUsage, strings.Join(names, " "))
	}
	ids := make([]int64, len(names))
	for i, name := range names {
		n, err := strconv.ParseInt(args[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer, got %q", ErrUsage, name, args[i])
		}
		ids[i] = n
	}
	return ids, nil
}

func (c *runner) keyed(args []string, fn func(productID, warehouseID int64) (any, error)) error {
	ids, err := parseIDs(args, "product_id", "warehouse_id")
	if err != nil {
		return err
	}
	return c.print(fn(ids[0], ids[1]))
}

func (c *runner) stock(ctx context.Context, args []string) error {
	var f core.StockFilter
	for _, a := range args {
		if a == "--low" {
			f.LowStockOnly = true
			continue
		}
		ids, err := parseIDs([]string{a}, "warehouse_id")
		if err != nil {
			return err
		}
		f.WarehouseID = ids[0]
	}
	return c.print(c.svc.ListStock(ctx, f))
}

func (c *runner) adjust(ctx context.Context, args []string) error {
	ids, err := parseIDs(args, "product_id", "warehouse_id", "qty")
	if err != nil {
		return err
	}
	return c.print(c.svc.AdjustStock(ctx, app.AdjustStockRequest{
		ProductID:   ids[0],
		WarehouseID: ids[1],
		Quantity:    ids[2],
		Reason:      strings.Join(args[3:], " "),
	}))
}

func (c *runner) transfer(ctx context.Context, args []string) error {
	ids, err := parseIDs(args, "product_id", "from_id", "to_id", "qty")
	if err != nil {
		return err
	}
	return c.print(c.svc.TransferStock(ctx, app.TransferStockRequest{
		ProductID:       ids[0],
		FromWarehouseID: ids[1],
		ToWarehouseID:   ids[2],
		Quantity:        ids[3],
		Notes:           strings.Join(args[4:], " "),
	}))
}

func (c *runner) purchaseOrder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: app po <create|approve|cancel|receive|get|list>", ErrUsage)
	}
	action, rest := args[0], args[1:]
	switch action {
	case "create":
		var req app.CreatePurchaseOrderRequest
		if err := c.decode(&req); err != nil {
			return err
		}
		return c.print(c.svc.CreatePurchaseOrder(ctx, req))
	case "list":
		f := core.OrderFilter{}
		if len(rest) > 0 {
			f.Status = rest[0]
		}
		return c.print(c.svc.ListPurchaseOrders(ctx, f))
	}

	ids, err := parseIDs(rest, "id")
	if err != nil {
		return err
	}
	switch action {
	case "approve":
		return c.print(c.svc.ApprovePurchaseOrder(ctx, ids[0]))
	case "cancel":
		return c.print(c.svc.CancelPurchaseOrder(ctx, ids[0]))
	case "get":
		return c.print(c.svc.GetPurchaseOrder(ctx, ids[0]))
	case "receive":
		req := app.ReceivePORequest{PurchaseOrderID: ids[0]}
		if err := c.decode(&req); err != nil {
			return err
		}
		return c.print(c.svc.ReceivePurchaseOrder(ctx, req))
	default:
		return fmt.Errorf("%w: unknown po action %q", ErrUsage, action)
	}
}

func (c *runner) salesOrder(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: app so <create|processing|ship|deliver|cancel|get|list>", ErrUsage)
	}
	action, rest := args[0], args[1:]
	switch action {
	case "create":
		var req app.CreateSalesOrderRequest
		if err := c.decode(&req); err != nil {
			return err
		}
		return c.print(c.svc.CreateSalesOrder(ctx, req))
	case "list":
		f := core.OrderFilter{}
		if len(rest) > 0 {
			f.Status = rest[0]
		}
		return c.print(c.svc.ListSalesOrders(ctx, f))
	}

	ids, err := parseIDs(rest, "id")
	if err != nil {
		return err
	}
	switch action {
	case "processing":
		return c.print(c.svc.BeginProcessing(ctx, ids[0]))
	case "ship":
		req := app.ShipOrderRequest{SalesOrderID: ids[0]}
		if len(rest) > 1 {
			req.Carrier = rest[1]
		}
		if len(rest) > 2 {
			req.TrackingNumber = rest[2]
		}
		return c.print(c.svc.ShipSalesOrder(ctx, req))
	case "deliver":
		return c.print(c.svc.DeliverSalesOrder(ctx, ids[0]))
	case "cancel":
		return c.print(c.svc.CancelSalesOrder(ctx, ids[0]))
	case "get":
		return c.print(c.svc.GetSalesOrder(ctx, ids[0]))
	default:
		return fmt.Errorf("%w: unknown so action %q", ErrUsage, action)
	}
}

// assist asks the assistant for a proposal, loops on clarification requests and
// executes only after the user answers yes.
func (c *runner) assist(ctx context.Context, text string) error {
	reader := bufio.NewReader(c.in)
	input := text
	for {
		result, err := c.svc.InterpretStockEvent(ctx, input)
		if err != nil {
			return err
		}

		if result.IsClarification {
			fmt.Fprintf(c.out, "\n[Clarification needed]: %s\n", result.ClarificationMessage)
			fmt.Fprint(c.out, "Your response: ")
			followUp := readLine(reader)
			if followUp == "" || strings.EqualFold(followUp, "cancel") {
				fmt.Fprintln(c.out, "Cancelled.")
				return nil
			}
			input = fmt.Sprintf("Original request: %s\nClarification requested: %s\nUser answer: %s",
				input, result.ClarificationMessage, followUp)
			continue
		}

		p := result.Proposal
		printProposal(c.out, p)
		if p.Confidence < 0.6 {
			fmt.Fprintln(c.out, "\nWARNING: Low confidence proposal.")
		}
		fmt.Fprint(c.out, "\nApply this stock action? (y/n): ")
		choice := strings.ToLower(readLine(reader))
		if choice != "y" && choice != "yes" {
			fmt.Fprintln(c.out, "Cancelled.")
			return nil
		}
		return c.print(c.svc.ExecuteStockAction(ctx, *p))
	}
}

func readLine(r *bufio.Reader) string {
	s, _ := r.ReadString('\n')
	return strings.TrimSpace(s)
}

func printProposal(w io.Writer, p *core.StockActionProposal) {
	fmt.Fprintf(w, "\nACTION:     %s\n", p.Action)
	fmt.Fprintf(w, "SKU:        %s\n", p.SKU)
	if p.Action == core.ActionTransfer {
		fmt.Fprintf(w, "WAREHOUSE:  %d -> %d\n", p.WarehouseID, p.ToWarehouseID)
	} else {
		fmt.Fprintf(w, "WAREHOUSE:  %d\n", p.WarehouseID)
	}
	fmt.Fprintf(w, "QUANTITY:   %d\n", p.Quantity)
	fmt.Fprintf(w, "REASON:     %s\n", p.Reason)
	fmt.Fprintf(w, "REASONING:  %s\n", p.Reasoning)
	fmt.Fprintf(w, "CONFIDENCE: %.2f\n", p.Confidence)
}
