// Package bootstrap wires configuration into a running ApplicationService.
package bootstrap

import (
	"context"

	"warehouse-ledger/internal/ai"
	"warehouse-ledger/internal/app"
	"warehouse-ledger/internal/config"
	"warehouse-ledger/internal/core"
	"warehouse-ledger/internal/db"
	"warehouse-ledger/internal/events"
	"warehouse-ledger/internal/idempotency"
	"warehouse-ledger/internal/store/postgres"

	"go.uber.org/zap"
)

// Runtime holds the wired service and the resources Close releases.
type Runtime struct {
	Service app.ApplicationService
	// Idempotency is nil unless Redis is configured.
	Idempotency idempotency.Store

	closers []func()
}

// Build connects to Postgres and the optional Kafka, Redis and OpenAI backends.
// withIdempotency is false for callers without an HTTP surface.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, withIdempotency bool) (*Runtime, error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{}
	rt.closers = append(rt.closers, pool.Close)

	store := postgres.New(pool, cfg.TxMaxRetries, log)

	var publisher core.EventPublisher = events.NewLogPublisher(log)
	if cfg.Kafka.Enabled() {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		rt.closers = append(rt.closers, func() {
			if err := kp.Close(); err != nil {
				log.Warn("failed to close kafka writer", zap.Error(err))
			}
		})
		publisher = events.Fanout{kp, publisher}
		log.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if withIdempotency && cfg.Redis.Enabled() {
		rs, err := idempotency.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rs.Close() })
		rt.Idempotency = rs
	}

	var assistant ai.StockAssistant
	if cfg.OpenAI.APIKey != "" {
		assistant = ai.NewAgent(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		log.Warn("OPENAI_API_KEY is not set; stock assistant disabled")
	}

	deps := core.Deps{
		Store:      store,
		Catalog:    store,
		Facilities: store,
		Events:     publisher,
		Logger:     log,
	}
	rt.Service = app.NewAppService(app.Services{
		Inventory:      core.NewInventoryService(deps),
		PurchaseOrders: core.NewPurchaseOrderService(deps),
		SalesOrders:    core.NewSalesOrderService(deps),
		Catalog:        store,
		Products:       store,
		Assistant:      assistant,
	}, cfg.OperationTimeout, log)
	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

