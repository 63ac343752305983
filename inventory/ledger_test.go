package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStock is an in-memory Store with the same atomicity contract as
// the real one: the decrement guard and the write happen under one
// lock.
type memStock struct {
	mu     sync.Mutex
	avail  map[string]int
	nested map[string]int
}

func newMemStock(initial map[string]int) *memStock {
	s := &memStock{avail: map[string]int{}, nested: map[string]int{}}
	for id, n := range initial {
		s.avail[id] = n
		s.nested[id] = n
	}
	return s
}

func (s *memStock) DecrementStock(_ context.Context, variantID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.avail[variantID] < qty {
		return 0, ErrOutOfStock
	}
	s.avail[variantID] -= qty
	s.nested[variantID] -= qty
	return s.avail[variantID], nil
}

func (s *memStock) IncrementStock(_ context.Context, variantID string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail[variantID] += qty
	s.nested[variantID] += qty
	return s.avail[variantID], nil
}

func (s *memStock) StockCounters(_ context.Context, variantID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avail[variantID], s.nested[variantID], nil
}

func (s *memStock) StockVariantIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.avail))
	for id := range s.avail {
		ids = append(ids, id)
	}
	return ids, nil
}

type recordingFeed struct {
	mu      sync.Mutex
	updates []int
}

func (f *recordingFeed) StockChanged(_ string, available int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, available)
}

func TestReserveDecrementsAvailability(t *testing.T) {
	store := newMemStock(map[string]int{"v1": 5})
	feed := &recordingFeed{}
	ledger := NewLedger(store, feed)

	require.NoError(t, ledger.Reserve(context.Background(), "v1", 3))

	assert.Equal(t, 2, store.avail["v1"])
	assert.Equal(t, []int{2}, feed.updates)
}

func TestReserveFailsAtBoundary(t *testing.T) {
	store := newMemStock(map[string]int{"v1": 2})
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	require.NoError(t, ledger.Reserve(ctx, "v1", 2))

	err := ledger.Reserve(ctx, "v1", 1)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 0, store.avail["v1"], "failed reserve must not change availability")
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	ledger := NewLedger(newMemStock(map[string]int{"v1": 5}), nil)
	assert.Error(t, ledger.Reserve(context.Background(), "v1", 0))
	assert.Error(t, ledger.Reserve(context.Background(), "v1", -2))
}

func TestReleaseRestoresAvailability(t *testing.T) {
	store := newMemStock(map[string]int{"v1": 5})
	ledger := NewLedger(store, nil)
	ctx := context.Background()

	require.NoError(t, ledger.Reserve(ctx, "v1", 4))
	require.NoError(t, ledger.Release(ctx, "v1", 4))

	assert.Equal(t, 5, store.avail["v1"])
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	const available = 50
	const shoppers = 80

	store := newMemStock(map[string]int{"v1": available})
	ledger := NewLedger(store, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Reserve(context.Background(), "v1", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, available, succeeded, "exactly the available units may be reserved")
	assert.Equal(t, 0, store.avail["v1"])
}

func TestCheckConsistencyFlagsDivergedCounters(t *testing.T) {
	store := newMemStock(map[string]int{"v1": 5, "v2": 3})
	store.nested["v2"] = 7

	ledger := NewLedger(store, nil)
	diverged, err := ledger.CheckConsistency(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, diverged)
}
