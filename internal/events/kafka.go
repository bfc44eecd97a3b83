// Package events delivers committed domain events to Kafka or to the log.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"warehouse-ledger/internal/core"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const writeTimeout = 5 * time.Second

// Envelope is the JSON value of every message on the events topic.
type Envelope struct {
	ID      uuid.UUID  `json:"id"`
	Type    string     `json:"type"`
	Key     string     `json:"key"`
	Payload core.Event `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by core.Event.EventKey so each
// ledger key or order stays on one partition.
type KafkaPublisher struct {
	writer messageWriter
}

var _ core.EventPublisher = (*KafkaPublisher)(nil)

const batchTimeout = 10 * time.Millisecond

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			// Publish is synchronous per event; the 1s default would stall every commit.
			BatchTimeout: batchTimeout,
		},
	}
}

func newKafkaPublisherWithWriter(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evs ...core.Event) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	msgs := make([]kafka.Message, 0, len(evs))
	for _, e := range evs {
		env := Envelope{ID: uuid.New(), Type: e.EventType(), Key: e.EventKey(), Payload: e}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", e.EventType(), err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.Key),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(env.Type)},
				{Key: "event-id", Value: []byte(env.ID.String())},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d events: %w", len(msgs), err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
