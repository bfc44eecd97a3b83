package core

import (
	"context"
	"fmt"
)

const (
	PurchaseOrderPrefix = "PO"
	SalesOrderPrefix    = "SO"
)

// FormatOrderNumber renders {prefix}-{year}-{seq}, with seq zero-padded to four digits.
func FormatOrderNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq)
}

// NextOrderNumber allocates the next number for (prefix, year) inside tx.
// The counter row stays locked until tx ends, so concurrent creates in the same year
// serialize on it and a rolled-back create leaves no gap.
func NextOrderNumber(ctx context.Context, tx Tx, prefix string, year int) (string, error) {
	seq, err := tx.NextSequence(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number for %d: %w", prefix, year, err)
	}
	return FormatOrderNumber(prefix, year, seq), nil
}
