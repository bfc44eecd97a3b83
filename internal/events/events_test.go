package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/events"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs     []kafka.Message
	deadline bool
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	_, w.deadline = ctx.Deadline()
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func sampleEvents() []core.Event {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return []core.Event{
		core.StockChangedEvent{
			LedgerKey:    core.LedgerKey{ProductID: 1, WarehouseID: 10},
			MovementType: core.MovementIn,
			OnHandDelta:  5,
			OnHand:       5,
			OccurredAt:   at,
		},
		core.OrderStatusChangedEvent{OrderType: core.RefSalesOrder, OrderID: 7, OrderNumber: "SO-2026-0007", From: "Pending", To: "Shipped", OccurredAt: at},
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := events.NewKafkaPublisherWithWriter(w)

	if err := p.Publish(context.Background(), sampleEvents()...); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if !w.deadline {
		t.Error("expected write to run under a deadline")
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "stock:1/10" || string(w.msgs[1].Key) != "SO:7" {
		t.Errorf("unexpected keys: %q %q", w.msgs[0].Key, w.msgs[1].Key)
	}

	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(w.msgs[1].Value, &env); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if env.Type != "order.status_changed" {
		t.Errorf("expected order.status_changed, got %s", env.Type)
	}
	var payload core.OrderStatusChangedEvent
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.To != "Shipped" || payload.OrderNumber != "SO-2026-0007" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if len(w.msgs[0].Headers) == 0 || w.msgs[0].Headers[0].Key != "event-type" || string(w.msgs[0].Headers[0].Value) != "stock.changed" {
		t.Errorf("unexpected headers: %+v", w.msgs[0].Headers)
	}
}

func TestKafkaPublisher_FlushesWithoutBatchDelay(t *testing.T) {
	p := events.NewKafkaPublisher([]string{"localhost:9092"}, "inventory-events")
	if d := events.WriterBatchTimeout(p); d <= 0 || d > 50*time.Millisecond {
		t.Errorf("expected a short writer batch timeout, got %v", d)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := events.NewKafkaPublisherWithWriter(w)
	if err := p.Publish(context.Background(), sampleEvents()...); err == nil {
		t.Error("expected error from failed write")
	}
	if err := p.Publish(context.Background()); err != nil {
		t.Errorf("expected no-op for empty publish, got %v", err)
	}
}

func TestLogPublisher(t *testing.T) {
	obs, logs := observer.New(zap.InfoLevel)
	p := events.NewLogPublisher(zap.New(obs))

	if err := p.Publish(context.Background(), sampleEvents()...); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if logs.Len() != 2 {
		t.Fatalf("expected 2 log lines, got %d", logs.Len())
	}
	if got := logs.All()[1].ContextMap()["type"]; got != "order.status_changed" {
		t.Errorf("unexpected type field: %v", got)
	}
}

func TestFanout(t *testing.T) {
	ok := &fakeWriter{}
	failing := &fakeWriter{err: errors.New("broker down")}

	t.Run("DeliversToAll", func(t *testing.T) {
		obs, logs := observer.New(zap.InfoLevel)
		f := events.Fanout{events.NewKafkaPublisherWithWriter(ok), events.NewLogPublisher(zap.New(obs))}
		if err := f.Publish(context.Background(), sampleEvents()...); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
		if len(ok.msgs) != 2 || logs.Len() != 2 {
			t.Errorf("expected 2 messages and 2 log entries, got %d and %d", len(ok.msgs), logs.Len())
		}
	})

	t.Run("ReturnsFirstError", func(t *testing.T) {
		f := events.Fanout{events.NewKafkaPublisherWithWriter(failing), events.NewLogPublisher(zap.NewNop())}
		if err := f.Publish(context.Background(), sampleEvents()...); err == nil {
			t.Error("expected error from failing publisher")
		}
	})
}
