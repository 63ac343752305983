package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrOutOfStock means a reserve would have taken availability below
// zero. User-facing and retryable with a lower quantity.
var ErrOutOfStock = errors.New("out of stock")

// Store performs the counter updates at the storage layer. Each
// mutation must be a single atomic conditional update per variant,
// never a read followed by a write, so concurrent shoppers racing on
// one SKU cannot oversell. Implementations return the new available
// count.
type Store interface {
	// DecrementStock subtracts qty from the variant's availability on
	// the stock record and the nested variant alike, failing with
	// ErrOutOfStock when the guard `available >= qty` does not hold.
	DecrementStock(ctx context.Context, variantID string, qty int) (int, error)

	// IncrementStock adds qty back, uncapped at total: a transient
	// overshoot from a double release is tolerated over blocking
	// recovery.
	IncrementStock(ctx context.Context, variantID string, qty int) (int, error)

	// StockCounters returns the stock record's and the nested
	// variant's available counts for a consistency check.
	StockCounters(ctx context.Context, variantID string) (record int, nested int, err error)

	// StockVariantIDs lists every variant id with a stock record.
	StockVariantIDs(ctx context.Context) ([]string, error)
}

// Broadcaster receives availability changes for the live stock feed.
type Broadcaster interface {
	StockChanged(variantID string, available int)
}

// Ledger owns the per-SKU available/total counters.
type Ledger struct {
	store Store
	feed  Broadcaster
}

func NewLedger(store Store, feed Broadcaster) *Ledger {
	return &Ledger{store: store, feed: feed}
}

// Reserve holds qty units of the variant for a cart.
func (l *Ledger) Reserve(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", qty)
	}
	available, err := l.store.DecrementStock(ctx, variantID, qty)
	if err != nil {
		return err
	}
	l.broadcast(variantID, available)
	return nil
}

// Release returns qty units of the variant to stock.
func (l *Ledger) Release(ctx context.Context, variantID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", qty)
	}
	available, err := l.store.IncrementStock(ctx, variantID, qty)
	if err != nil {
		return err
	}
	l.broadcast(variantID, available)
	return nil
}

// CheckConsistency compares every stock record against its nested
// variant counter and returns the variant ids that diverge. It is a
// safety net behind the dual write, not a repair tool.
func (l *Ledger) CheckConsistency(ctx context.Context) ([]string, error) {
	ids, err := l.store.StockVariantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}

	var diverged []string
	for _, id := range ids {
		record, nested, err := l.store.StockCounters(ctx, id)
		if err != nil {
			log.Printf("stock consistency: counters for %s: %v", id, err)
			continue
		}
		if record != nested {
			log.Printf("stock consistency: variant %s record=%d nested=%d", id, record, nested)
			diverged = append(diverged, id)
		}
	}
	return diverged, nil
}

func (l *Ledger) broadcast(variantID string, available int) {
	if l.feed != nil {
		l.feed.StockChanged(variantID, available)
	}
}
