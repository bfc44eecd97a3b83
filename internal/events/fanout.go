package events

import (
	"context"

	"warehouse-ledger/internal/core"

	"golang.org/x/sync/errgroup"
)

// Fanout delivers every batch to all publishers concurrently and returns the first error.
type Fanout []core.EventPublisher

var _ core.EventPublisher = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, evs ...core.Event) error {
	if len(evs) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range f {
		g.Go(func() error { return p.Publish(ctx, evs...) })
	}
	return g.Wait()
}
