package core

import (
	"context"
	"errors"
	"fmt"
)

// Store is the persistence port shared by all core services.
//
// InTx runs fn as one unit of work: every write made through tx commits together or not
// at all. Implementations may run fn more than once when the backend reports a
// serialization conflict, so fn must not keep side effects outside tx between attempts.
// Commit itself is never interrupted by ctx; if ctx ends before commit, InTx rolls back
// and returns the context error.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Reader
}

// Tx is one unit of work.
//
// Lock order within a tx: order row, then sequence counter, then stock keys. All stock
// keys an operation needs are locked in a single LockStock call; implementations acquire
// them in LedgerKey.Compare order. Locks are held until the tx ends.
type Tx interface {
	LockStock(ctx context.Context, keys ...LedgerKey) error
	// GetStock returns the entry as seen by this tx, or a zero entry when none exists.
	GetStock(ctx context.Context, key LedgerKey) (StockLedgerEntry, error)
	PutStock(ctx context.Context, e StockLedgerEntry) error
	// AppendMovement stores m and sets m.ID.
	AppendMovement(ctx context.Context, m *StockMovement) error
	// ListMovements sees committed movements plus those appended by this tx, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	// NextSequence returns the next counter value for (prefix, year), starting at 1.
	// A rolled-back tx does not consume a value.
	NextSequence(ctx context.Context, prefix string, year int) (int64, error)

	// InsertPurchaseOrder stores po with its items and sets their IDs.
	InsertPurchaseOrder(ctx context.Context, po *PurchaseOrder) error
	// LockPurchaseOrder loads po with its items and holds it until the tx ends.
	LockPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrder, error)
	// UpdatePurchaseOrder writes the status, UpdatedAt and item received quantities.
	UpdatePurchaseOrder(ctx context.Context, po *PurchaseOrder) error

	InsertSalesOrder(ctx context.Context, so *SalesOrder) error
	// LockSalesOrder loads so with its items and shipments and holds it until the tx ends.
	LockSalesOrder(ctx context.Context, id int64) (*SalesOrder, error)
	UpdateSalesOrderStatus(ctx context.Context, so *SalesOrder) error
	InsertShipment(ctx context.Context, sh *Shipment) error
	UpdateShipment(ctx context.Context, sh *Shipment) error
}

// Reader serves committed state outside a unit of work.
type Reader interface {
	// GetStock returns a zero entry for keys that were never written.
	GetStock(ctx context.Context, key LedgerKey) (StockLedgerEntry, error)
	ListStock(ctx context.Context, warehouseID int64) ([]StockLedgerEntry, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)

	GetPurchaseOrder(ctx context.Context, id int64) (*PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter OrderFilter) ([]PurchaseOrder, error)
	GetSalesOrder(ctx context.Context, id int64) (*SalesOrder, error)
	ListSalesOrders(ctx context.Context, filter OrderFilter) ([]SalesOrder, error)
}

// runTx runs fn in a unit of work and maps a context that ended before commit to
// *OperationTimeoutError. Typed domain errors pass through unchanged.
func runTx(ctx context.Context, store Store, op string, fn func(tx Tx) error) error {
	err := store.InTx(ctx, fn)
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return &OperationTimeoutError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrInsufficientStock, ErrOverReceipt, ErrInvalidStateTransition,
		ErrNotFound, ErrConcurrencyConflict, ErrOperationTimeout,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
