package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Event is a domain fact published after its transaction commits.
type Event interface {
	EventType() string
	// EventKey groups events that must stay ordered, e.g. one ledger key or one order.
	EventKey() string
}

type StockChangedEvent struct {
	LedgerKey
	MovementID    int64         `json:"movement_id"`
	MovementType  MovementType  `json:"movement_type"`
	OnHandDelta   int64         `json:"on_hand_delta"`
	ReservedDelta int64         `json:"reserved_delta"`
	OnHand        int64         `json:"on_hand"`
	Reserved      int64         `json:"reserved"`
	ReferenceType ReferenceType `json:"reference_type"`
	ReferenceID   string        `json:"reference_id"`
	Actor         string        `json:"actor"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func (StockChangedEvent) EventType() string  { return "stock.changed" }
func (e StockChangedEvent) EventKey() string { return "stock:" + e.LedgerKey.String() }

// LowStockEvent fires when on-hand crosses from above to at-or-below the reorder level.
type LowStockEvent struct {
	LedgerKey
	SKU             string    `json:"sku"`
	OnHand          int64     `json:"on_hand"`
	Available       int64     `json:"available"`
	ReorderLevel    int64     `json:"reorder_level"`
	ReorderQuantity int64     `json:"reorder_quantity"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (LowStockEvent) EventType() string  { return "stock.low" }
func (e LowStockEvent) EventKey() string { return "stock:" + e.LedgerKey.String() }

type OrderStatusChangedEvent struct {
	OrderType   ReferenceType `json:"order_type"`
	OrderID     int64         `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	From        string        `json:"from,omitempty"`
	To          string        `json:"to"`
	Actor       string        `json:"actor"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

func (OrderStatusChangedEvent) EventType() string { return "order.status_changed" }
func (e OrderStatusChangedEvent) EventKey() string {
	return fmt.Sprintf("%s:%d", e.OrderType, e.OrderID)
}

// EventPublisher delivers committed events. A failed publish never undoes the commit.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...Event) error { return nil }

const publishTimeout = 5 * time.Second

// publish runs after commit, so it detaches from the caller's deadline and only logs failures.
func publish(ctx context.Context, p EventPublisher, log *zap.Logger, events []Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, events...); err != nil {
		log.Warn("failed to publish events", zap.Int("count", len(events)), zap.Error(err))
	}
}
