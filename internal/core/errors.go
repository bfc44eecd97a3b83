package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. Each typed error below matches exactly one of them.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrOverReceipt            = errors.New("over receipt")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotFound               = errors.New("not found")
	ErrConcurrencyConflict    = errors.New("concurrency conflict")
	ErrOperationTimeout       = errors.New("operation timed out")
)

// ValidationError reports malformed input. Problems holds one entry per failing field or line.
type ValidationError struct {
	Problems []string
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError reports a ledger change that would break
// 0 <= reserved <= on-hand for the given key.
type InsufficientStockError struct {
	Key       LedgerKey
	OnHand    int64
	Reserved  int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d in warehouse %d: on hand %d, reserved %d, requested %d",
		e.Key.ProductID, e.Key.WarehouseID, e.OnHand, e.Reserved, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// OverReceiptLine describes one purchase order line whose receipt exceeds the remaining quantity.
type OverReceiptLine struct {
	LineID    int64
	Ordered   int64
	Received  int64
	Requested int64
}

type OverReceiptError struct {
	PurchaseOrderID int64
	Lines           []OverReceiptLine
}

func (e *OverReceiptError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, fmt.Sprintf("line %d: ordered %d, received %d, requested %d",
			l.LineID, l.Ordered, l.Received, l.Requested))
	}
	return fmt.Sprintf("over receipt on purchase order %d: %s", e.PurchaseOrderID, strings.Join(parts, "; "))
}

func (e *OverReceiptError) Is(target error) bool { return target == ErrOverReceipt }

type InvalidStateTransitionError struct {
	Entity string
	ID     int64
	From   string
	Action string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *InvalidStateTransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConcurrencyConflictError is returned once store-level retries are exhausted.
// The whole operation is safe to retry.
type ConcurrencyConflictError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: concurrency conflict after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ConcurrencyConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

func (e *ConcurrencyConflictError) Unwrap() error { return e.Err }

// OperationTimeoutError is returned when the caller's context ended before commit.
// Nothing from the operation was applied.
type OperationTimeoutError struct {
	Op  string
	Err error
}

func (e *OperationTimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out, rolled back: %v", e.Op, e.Err)
}

func (e *OperationTimeoutError) Is(target error) bool { return target == ErrOperationTimeout }

func (e *OperationTimeoutError) Unwrap() error { return e.Err }
