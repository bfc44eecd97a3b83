package core

import (
	"fmt"
	"strings"
)

type StockAction string

const (
	ActionAdjust   StockAction = "adjust"
	ActionTransfer StockAction = "transfer"
)

// StockActionProposal is a stock operation drafted from free text, pending human confirmation.
type StockActionProposal struct {
	Action        StockAction `json:"action" jsonschema_description:"Either 'adjust' (count correction, damage, shrinkage, found stock) or 'transfer' (move stock between warehouses)."`
	SKU           string      `json:"sku" jsonschema_description:"The exact product SKU from the provided catalog."`
	WarehouseID   int64       `json:"warehouse_id" jsonschema_description:"Warehouse ID being adjusted, or the source warehouse ID for a transfer."`
	ToWarehouseID int64       `json:"to_warehouse_id" jsonschema_description:"Destination warehouse ID for a transfer. Use 0 for an adjustment."`
	Quantity      int64       `json:"quantity" jsonschema_description:"Units. Signed for an adjustment (negative removes stock). Always positive for a transfer."`
	Reason        string      `json:"reason" jsonschema_description:"Short reason recorded on the stock movement."`
	Confidence    float64     `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning     string      `json:"reasoning" jsonschema_description:"Explanation for the proposed stock action"`
}

// ClarificationRequest is returned when the input is too ambiguous for a proposal.
type ClarificationRequest struct {
	Message string `json:"message" jsonschema_description:"A question asking the user for the missing details (e.g. which warehouse, how many units)."`
}

// AssistantResponse holds exactly one of Clarification or Proposal.
type AssistantResponse struct {
	IsClarificationRequest bool                  `json:"is_clarification_request" jsonschema_description:"Set to true ONLY if you lack enough information to create a confident proposal."`
	Clarification          *ClarificationRequest `json:"clarification,omitempty" jsonschema_description:"Required if is_clarification_request is true."`
	Proposal               *StockActionProposal  `json:"proposal,omitempty" jsonschema_description:"Required if is_clarification_request is false."`
}

// Normalize cleans up model output before validation.
func (p *StockActionProposal) Normalize() {
	action := strings.ToLower(strings.TrimSpace(string(p.Action)))
	switch action {
	case "adjustment", "adjust_inventory", "correct":
		action = string(ActionAdjust)
	case "move", "transfer_stock":
		action = string(ActionTransfer)
	}
	p.Action = StockAction(action)
	p.SKU = strings.ToUpper(strings.TrimSpace(p.SKU))
	p.Reason = strings.TrimSpace(p.Reason)
	if p.Action == ActionAdjust {
		p.ToWarehouseID = 0
	}
}

// Validate reports every problem at once as a *ValidationError.
func (p *StockActionProposal) Validate() error {
	var problems []string
	if p.SKU == "" {
		problems = append(problems, "proposal must specify a SKU")
	}
	if p.WarehouseID <= 0 {
		problems = append(problems, "proposal must specify a warehouse")
	}
	switch p.Action {
	case ActionAdjust:
		if p.Quantity == 0 {
			problems = append(problems, "adjustment quantity must be non-zero")
		}
	case ActionTransfer:
		if p.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("transfer quantity must be positive, got %d", p.Quantity))
		}
		if p.ToWarehouseID <= 0 {
			problems = append(problems, "transfer must specify a destination warehouse")
		} else if p.ToWarehouseID == p.WarehouseID {
			problems = append(problems, "source and destination warehouse must differ")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown action %q", p.Action))
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence must be within 0..1, got %v", p.Confidence))
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
