package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/identity"
	"tienda/models"
	"tienda/utils"
)

// ErrInvalidQuantity rejects non-positive quantities.
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// Ledger is the slice of the inventory ledger the cart needs.
type Ledger interface {
	Reserve(ctx context.Context, variantID string, qty int) error
	Release(ctx context.Context, variantID string, qty int) error
}

// Store is the persistence surface for line items, reservation
// mirrors and cart metadata.
type Store interface {
	VariantSnapshot(ctx context.Context, variantID string) (models.Product, models.Variant, error)
	FindItemByVariant(ctx context.Context, cartID, variantID string) (*models.LineItem, error)
	GetItem(ctx context.Context, cartID, itemID string) (*models.LineItem, error)
	InsertItem(ctx context.Context, item *models.LineItem) error
	AddItemQuantity(ctx context.Context, cartID, itemID string, delta int) error
	DeleteItem(ctx context.Context, cartID, itemID string) error
	ListItems(ctx context.Context, cartID string) ([]models.LineItem, error)
	AddReservation(ctx context.Context, cartID, variantID string, delta int) error
	DeleteReservation(ctx context.Context, cartID, variantID string) error
	EnsureMeta(ctx context.Context, cartID, userID string, expire time.Time) error
}

// Service owns a cart's line items and keeps them consistent with the
// inventory ledger: every committed reserve has a matching release on
// removal, decrease or expiration.
type Service struct {
	store      Store
	ledger     Ledger
	cartExpiry time.Duration
}

func NewService(store Store, ledger Ledger, cartExpiry time.Duration) *Service {
	return &Service{store: store, ledger: ledger, cartExpiry: cartExpiry}
}

// AddItem reserves qty units and adds them to the cart, incrementing
// an existing line item for the same variant if there is one. The
// reserve happens first; if it fails no line item is touched. A store
// failure after a successful reserve releases the hold again so no
// partial decrement survives.
func (s *Service) AddItem(ctx context.Context, id identity.Identity, variantID string, qty int) (*models.LineItem, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	if err := s.ledger.Reserve(ctx, variantID, qty); err != nil {
		return nil, err
	}

	item, err := s.addReserved(ctx, id, variantID, qty)
	if err != nil {
		if relErr := s.ledger.Release(ctx, variantID, qty); relErr != nil {
			return nil, fmt.Errorf("%w (release after failed add also failed: %v)", err, relErr)
		}
		return nil, err
	}
	return item, nil
}

func (s *Service) addReserved(ctx context.Context, id identity.Identity, variantID string, qty int) (*models.LineItem, error) {
	if err := s.store.EnsureMeta(ctx, id.CartID, id.UserID, time.Now().Add(s.cartExpiry)); err != nil {
		return nil, err
	}

	existing, err := s.store.FindItemByVariant(ctx, id.CartID, variantID)
	switch {
	case err == nil:
		if err := s.applyDelta(ctx, id, existing, qty); err != nil {
			return nil, err
		}
		existing.Quantity += qty
		return existing, nil

	case isNotFound(err):
		product, variant, err := s.store.VariantSnapshot(ctx, variantID)
		if err != nil {
			return nil, err
		}
		item := &models.LineItem{
			ItemID:        utils.NewItemID(),
			CartID:        id.CartID,
			VariantID:     variantID,
			ProductID:     product.ProductID,
			Quantity:      qty,
			Price:         variant.Price,
			DiscountPrice: variant.DiscountPrice,
			Name:          product.Name,
			SKU:           variant.SKU,
			Images:        variant.Images,
			Options:       variant.Options,
			AddedAt:       time.Now(),
		}
		if err := s.store.InsertItem(ctx, item); err != nil {
			return nil, err
		}
		if id.Anonymous() {
			if err := s.store.AddReservation(ctx, id.CartID, variantID, qty); err != nil {
				if delErr := s.store.DeleteItem(ctx, id.CartID, item.ItemID); delErr != nil {
					return nil, fmt.Errorf("%w (removing the new item also failed: %v)", err, delErr)
				}
				return nil, err
			}
		}
		return item, nil

	default:
		return nil, err
	}
}

// UpdateItem sets a line item to a new quantity, reserving or
// releasing only the delta. A store failure after the ledger moved
// hands the delta back, so no partial decrement survives.
func (s *Service) UpdateItem(ctx context.Context, id identity.Identity, itemID string, newQty int) (*models.LineItem, error) {
	if newQty <= 0 {
		return nil, ErrInvalidQuantity
	}

	item, err := s.store.GetItem(ctx, id.CartID, itemID)
	if err != nil {
		return nil, err
	}

	delta := newQty - item.Quantity
	if delta == 0 {
		return item, nil
	}

	if delta > 0 {
		if err := s.ledger.Reserve(ctx, item.VariantID, delta); err != nil {
			return nil, err
		}
	} else {
		if err := s.ledger.Release(ctx, item.VariantID, -delta); err != nil {
			return nil, err
		}
	}

	if err := s.applyDelta(ctx, id, item, delta); err != nil {
		if undoErr := s.undoDelta(ctx, item.VariantID, delta); undoErr != nil {
			return nil, fmt.Errorf("%w (undo after failed update also failed: %v)", err, undoErr)
		}
		return nil, err
	}
	item.Quantity = newQty
	return item, nil
}

// applyDelta moves a line item's quantity by delta together with the
// anonymous reservation mirror. The two writes must move together: a
// failed mirror write reverts the quantity so the item never holds
// units the caller is about to hand back to the ledger.
func (s *Service) applyDelta(ctx context.Context, id identity.Identity, item *models.LineItem, delta int) error {
	if err := s.store.AddItemQuantity(ctx, id.CartID, item.ItemID, delta); err != nil {
		return err
	}
	if id.Anonymous() {
		if err := s.store.AddReservation(ctx, id.CartID, item.VariantID, delta); err != nil {
			if revErr := s.store.AddItemQuantity(ctx, id.CartID, item.ItemID, -delta); revErr != nil {
				return fmt.Errorf("%w (reverting the quantity also failed: %v)", err, revErr)
			}
			return err
		}
	}
	return nil
}

// undoDelta hands a failed update's ledger movement back: a reserved
// delta is released, a released delta is reserved again.
func (s *Service) undoDelta(ctx context.Context, variantID string, delta int) error {
	if delta > 0 {
		return s.ledger.Release(ctx, variantID, delta)
	}
	return s.ledger.Reserve(ctx, variantID, -delta)
}

// RemoveItem releases the item's full quantity back to stock and
// deletes the line item together with its reservation mirror.
func (s *Service) RemoveItem(ctx context.Context, id identity.Identity, itemID string) error {
	item, err := s.store.GetItem(ctx, id.CartID, itemID)
	if err != nil {
		return err
	}

	if err := s.ledger.Release(ctx, item.VariantID, item.Quantity); err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, id.CartID, itemID); err != nil {
		return err
	}
	if id.Anonymous() {
		if err := s.store.DeleteReservation(ctx, id.CartID, item.VariantID); err != nil {
			return err
		}
	}
	return nil
}

// List returns the cart's line items in insertion order.
func (s *Service) List(ctx context.Context, id identity.Identity) ([]models.LineItem, error) {
	return s.store.ListItems(ctx, id.CartID)
}
