package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func defaultClock() time.Time { return time.Now() }

// Deps bundles the collaborators shared by the core services.
type Deps struct {
	Store      Store
	Catalog    Catalog
	Facilities Facilities
	Events     EventPublisher // nil publishes nothing
	Logger     *zap.Logger    // nil logs nothing
	Now        Clock          // nil uses time.Now
}

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = defaultClock
	}
	return d
}

// committed publishes everything cs recorded. Call only after the tx committed.
func (d Deps) committed(ctx context.Context, cs *changeSet) {
	publish(ctx, d.Events, d.Logger, cs.events(ctx, d.Catalog, d.Logger))
}

// requireProduct returns a *NotFoundError for unknown products and a *ValidationError for inactive ones.
func (d Deps) requireProduct(ctx context.Context, id int64) (*Product, error) {
	p, err := d.Catalog.ProductByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, NewValidationError("product %d (%s) is inactive", p.ID, p.SKU)
	}
	return p, nil
}

func (d Deps) requireWarehouse(ctx context.Context, id int64) (*Warehouse, error) {
	w, err := d.Facilities.WarehouseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, NewValidationError("warehouse %d (%s) is inactive", w.ID, w.Name)
	}
	return w, nil
}
