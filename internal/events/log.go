package events

import (
	"context"

	"warehouse-ledger/internal/core"

	"go.uber.org/zap"
)

// LogPublisher records events as structured log lines when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

var _ core.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, evs ...core.Event) error {
	for _, e := range evs {
		p.log.Info("event",
			zap.String("type", e.EventType()),
			zap.String("key", e.EventKey()),
			zap.Any("payload", e),
		)
	}
	return nil
}
