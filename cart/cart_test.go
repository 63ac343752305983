package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/db"
	"tienda/identity"
	"tienda/inventory"
	"tienda/models"
)

// memCartStore is an in-memory Store. Every mutation is recorded so
// tests can assert on the exact write sequence.
type memCartStore struct {
	products     map[string]models.Product
	items        map[string]*models.LineItem
	reservations map[string]int
	metas        map[string]*models.CartMeta

	failInsert      bool
	failAddQty      bool
	failReservation bool
}

func newMemCartStore() *memCartStore {
	return &memCartStore{
		products:     map[string]models.Product{},
		items:        map[string]*models.LineItem{},
		reservations: map[string]int{},
		metas:        map[string]*models.CartMeta{},
	}
}

func (s *memCartStore) addProduct(p models.Product) {
	for _, v := range p.Variants {
		s.products[v.VariantID] = p
	}
}

func (s *memCartStore) VariantSnapshot(_ context.Context, variantID string) (models.Product, models.Variant, error) {
	p, ok := s.products[variantID]
	if !ok {
		return models.Product{}, models.Variant{}, db.ErrNotFound
	}
	v, _ := p.Variant(variantID)
	return p, v, nil
}

func (s *memCartStore) FindItemByVariant(_ context.Context, cartID, variantID string) (*models.LineItem, error) {
	for _, item := range s.items {
		if item.CartID == cartID && item.VariantID == variantID {
			cp := *item
			return &cp, nil
		}
	}
	return nil, db.ErrNotFound
}

func (s *memCartStore) GetItem(_ context.Context, cartID, itemID string) (*models.LineItem, error) {
	item, ok := s.items[itemID]
	if !ok || item.CartID != cartID {
		return nil, db.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *memCartStore) InsertItem(_ context.Context, item *models.LineItem) error {
	if s.failInsert {
		return errors.New("insert failed")
	}
	cp := *item
	s.items[item.ItemID] = &cp
	return nil
}

func (s *memCartStore) AddItemQuantity(_ context.Context, cartID, itemID string, delta int) error {
	if s.failAddQty {
		return errors.New("quantity write failed")
	}
	item, ok := s.items[itemID]
	if !ok || item.CartID != cartID {
		return db.ErrNotFound
	}
	item.Quantity += delta
	return nil
}

func (s *memCartStore) DeleteItem(_ context.Context, cartID, itemID string) error {
	item, ok := s.items[itemID]
	if !ok || item.CartID != cartID {
		return db.ErrNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *memCartStore) ListItems(_ context.Context, cartID string) ([]models.LineItem, error) {
	out := []models.LineItem{}
	for _, item := range s.items {
		if item.CartID == cartID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *memCartStore) AddReservation(_ context.Context, cartID, variantID string, delta int) error {
	if s.failReservation {
		return errors.New("reservation write failed")
	}
	s.reservations[cartID+"/"+variantID] += delta
	return nil
}

func (s *memCartStore) DeleteReservation(_ context.Context, cartID, variantID string) error {
	delete(s.reservations, cartID+"/"+variantID)
	return nil
}

func (s *memCartStore) EnsureMeta(_ context.Context, cartID, userID string, expire time.Time) error {
	if _, ok := s.metas[cartID]; !ok {
		s.metas[cartID] = &models.CartMeta{
			CartID:     cartID,
			UserID:     userID,
			Status:     models.StatusWaiting,
			ExpireDate: &expire,
		}
	}
	return nil
}

// memLedger tracks reserved units per variant against a fixed stock.
type memLedger struct {
	available map[string]int
	reserved  map[string]int
}

func newMemLedger(available map[string]int) *memLedger {
	return &memLedger{available: available, reserved: map[string]int{}}
}

func (l *memLedger) Reserve(_ context.Context, variantID string, qty int) error {
	if l.available[variantID] < qty {
		return inventory.ErrOutOfStock
	}
	l.available[variantID] -= qty
	l.reserved[variantID] += qty
	return nil
}

func (l *memLedger) Release(_ context.Context, variantID string, qty int) error {
	l.available[variantID] += qty
	l.reserved[variantID] -= qty
	return nil
}

func testProduct() models.Product {
	return models.Product{
		ProductID: "prod1",
		Name:      "Playera",
		Variants: []models.Variant{{
			VariantID:     "v1",
			SKU:           "PLY-M-BLK",
			Price:         25000,
			DiscountPrice: 19900,
			Options:       map[string]string{"size": "M"},
		}},
	}
}

func anonIdentity(cartID string) identity.Identity {
	return identity.Identity{CartID: cartID, Session: &identity.Session{CartID: cartID}}
}

func userIdentity(cartID, userID string) identity.Identity {
	return identity.Identity{CartID: cartID, UserID: userID}
}

func TestAddItemSnapshotsVariant(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)

	item, err := svc.AddItem(context.Background(), userIdentity("c1", "u1"), "v1", 2)
	require.NoError(t, err)

	assert.Equal(t, "c1", item.CartID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, int64(25000), item.Price)
	assert.Equal(t, int64(19900), item.DiscountPrice)
	assert.Equal(t, int64(19900), item.UnitPrice())
	assert.Equal(t, "PLY-M-BLK", item.SKU)
	assert.Equal(t, 2, ledger.reserved["v1"])

	meta := store.metas["c1"]
	require.NotNil(t, meta)
	assert.Equal(t, models.StatusWaiting, meta.Status)
	assert.NotNil(t, meta.ExpireDate)
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := userIdentity("c1", "u1")

	first, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)
	second, err := svc.AddItem(ctx, id, "v1", 3)
	require.NoError(t, err)

	assert.Equal(t, first.ItemID, second.ItemID, "same variant reuses the line item")
	assert.Equal(t, 5, second.Quantity)
	assert.Len(t, store.items, 1)
	assert.Equal(t, 5, ledger.reserved["v1"])
}

func TestAddItemMirrorsSessionReservation(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)

	_, err := svc.AddItem(context.Background(), anonIdentity("c1"), "v1", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, store.reservations["c1/v1"])
}

func TestAddItemOutOfStockLeavesCartUntouched(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 1})
	svc := NewService(store, ledger, 7*24*time.Hour)

	_, err := svc.AddItem(context.Background(), userIdentity("c1", "u1"), "v1", 2)
	require.Error(t, err)

	assert.Empty(t, store.items)
	assert.Equal(t, 1, ledger.available["v1"])
	assert.Zero(t, ledger.reserved["v1"])
}

func TestAddItemReleasesReserveWhenInsertFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	store.failInsert = true
	ledger := newMemLedger(map[string]int{"v1": 5})
	svc := NewService(store, ledger, 7*24*time.Hour)

	_, err := svc.AddItem(context.Background(), userIdentity("c1", "u1"), "v1", 2)
	require.Error(t, err)

	assert.Equal(t, 5, ledger.available["v1"], "failed insert must release the hold")
	assert.Zero(t, ledger.reserved["v1"])
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newMemCartStore(), newMemLedger(nil), time.Hour)

	_, err := svc.AddItem(context.Background(), userIdentity("c1", "u1"), "v1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.AddItem(context.Background(), userIdentity("c1", "u1"), "v1", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateItemReservesOnlyTheDelta(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := userIdentity("c1", "u1")

	item, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, id, item.ItemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, 5, ledger.reserved["v1"])

	updated, err = svc.UpdateItem(ctx, id, item.ItemID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Quantity)
	assert.Equal(t, 1, ledger.reserved["v1"])
	assert.Equal(t, 9, ledger.available["v1"])
}

func TestUpdateItemReleasesDeltaWhenWriteFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := userIdentity("c1", "u1")

	item, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)
	require.Equal(t, 8, ledger.available["v1"])

	store.failAddQty = true
	_, err = svc.UpdateItem(ctx, id, item.ItemID, 5)
	require.Error(t, err)

	assert.Equal(t, 8, ledger.available["v1"], "failed write must hand the delta back")
	assert.Equal(t, 2, ledger.reserved["v1"])
	assert.Equal(t, 2, store.items[item.ItemID].Quantity)
}

func TestUpdateItemReclaimsDeltaWhenDecreaseWriteFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := userIdentity("c1", "u1")

	item, err := svc.AddItem(ctx, id, "v1", 5)
	require.NoError(t, err)
	require.Equal(t, 5, ledger.available["v1"])

	store.failAddQty = true
	_, err = svc.UpdateItem(ctx, id, item.ItemID, 2)
	require.Error(t, err)

	assert.Equal(t, 5, ledger.available["v1"], "failed write must reclaim the released units")
	assert.Equal(t, 5, ledger.reserved["v1"])
	assert.Equal(t, 5, store.items[item.ItemID].Quantity)
}

func TestAddItemRevertsQuantityWhenMirrorWriteFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := anonIdentity("c1")

	item, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)

	store.failReservation = true
	_, err = svc.AddItem(ctx, id, "v1", 3)
	require.Error(t, err)

	assert.Equal(t, 2, store.items[item.ItemID].Quantity, "failed mirror write must revert the quantity")
	assert.Equal(t, 2, store.reservations["c1/v1"])
	assert.Equal(t, 8, ledger.available["v1"])
	assert.Equal(t, 2, ledger.reserved["v1"])
}

func TestAddItemRemovesNewLineWhenMirrorWriteFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	store.failReservation = true
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)

	_, err := svc.AddItem(context.Background(), anonIdentity("c1"), "v1", 2)
	require.Error(t, err)

	assert.Empty(t, store.items, "failed mirror write must remove the new line item")
	assert.Empty(t, store.reservations)
	assert.Equal(t, 10, ledger.available["v1"])
	assert.Zero(t, ledger.reserved["v1"])
}

func TestUpdateItemRevertsQuantityWhenMirrorWriteFails(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := anonIdentity("c1")

	item, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)

	store.failReservation = true
	_, err = svc.UpdateItem(ctx, id, item.ItemID, 5)
	require.Error(t, err)

	assert.Equal(t, 2, store.items[item.ItemID].Quantity)
	assert.Equal(t, 2, store.reservations["c1/v1"])
	assert.Equal(t, 8, ledger.available["v1"])
	assert.Equal(t, 2, ledger.reserved["v1"])
}

func TestUpdateItemToSameQuantityIsNoop(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := userIdentity("c1", "u1")

	item, err := svc.AddItem(ctx, id, "v1", 2)
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, id, item.ItemID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, 2, ledger.reserved["v1"])
}

func TestRemoveItemReleasesFullQuantity(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()
	id := anonIdentity("c1")

	item, err := svc.AddItem(ctx, id, "v1", 4)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, id, item.ItemID))

	assert.Empty(t, store.items)
	assert.Empty(t, store.reservations)
	assert.Equal(t, 10, ledger.available["v1"])
}

func TestRemoveMissingItem(t *testing.T) {
	svc := NewService(newMemCartStore(), newMemLedger(nil), time.Hour)

	err := svc.RemoveItem(context.Background(), userIdentity("c1", "u1"), "nope")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListReturnsCartItemsOnly(t *testing.T) {
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": 10})
	svc := NewService(store, ledger, 7*24*time.Hour)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, userIdentity("c1", "u1"), "v1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, userIdentity("c2", "u2"), "v1", 1)
	require.NoError(t, err)

	items, err := svc.List(ctx, userIdentity("c1", "u1"))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "c1", items[0].CartID)
}
