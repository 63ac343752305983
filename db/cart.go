package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FindItemByVariant returns the cart's line item for a variant.
func (s *Store) FindItemByVariant(ctx context.Context, cartID, variantID string) (*models.LineItem, error) {
	var item models.LineItem
	err := s.CartItems.FindOne(ctx, bson.M{"cartid": cartID, "variantid": variantID}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find item by variant: %w", err)
	}
	return &item, nil
}

// GetItem returns a line item only if it belongs to the cart.
func (s *Store) GetItem(ctx context.Context, cartID, itemID string) (*models.LineItem, error) {
	var item models.LineItem
	err := s.CartItems.FindOne(ctx, bson.M{"cartid": cartID, "itemid": itemID}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// InsertItem adds a new line item.
func (s *Store) InsertItem(ctx context.Context, item *models.LineItem) error {
	if _, err := s.CartItems.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// AddItemQuantity increments a line item's quantity by delta.
func (s *Store) AddItemQuantity(ctx context.Context, cartID, itemID string, delta int) error {
	res, err := s.CartItems.UpdateOne(ctx,
		bson.M{"cartid": cartID, "itemid": itemID},
		bson.M{"$inc": bson.M{"quantity": delta}},
	)
	if err != nil {
		return fmt.Errorf("add item quantity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes one line item from the cart.
func (s *Store) DeleteItem(ctx context.Context, cartID, itemID string) error {
	res, err := s.CartItems.DeleteOne(ctx, bson.M{"cartid": cartID, "itemid": itemID})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItems removes every line item of a cart. Deleting an already
// empty cart is a no-op, which keeps the expiration sweep idempotent.
func (s *Store) DeleteItems(ctx context.Context, cartID string) error {
	if _, err := s.CartItems.DeleteMany(ctx, bson.M{"cartid": cartID}); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return nil
}

// ListItems returns the cart's line items in insertion order.
func (s *Store) ListItems(ctx context.Context, cartID string) ([]models.LineItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "addedat", Value: 1}})
	cursor, err := s.CartItems.Find(ctx, bson.M{"cartid": cartID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.LineItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	if items == nil {
		items = []models.LineItem{}
	}
	return items, nil
}

// AddReservation upserts the session-cart reservation mirror,
// incrementing the held quantity by delta.
func (s *Store) AddReservation(ctx context.Context, cartID, variantID string, delta int) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.Reservations.UpdateOne(ctx,
		bson.M{"cartid": cartID, "variantid": variantID},
		bson.M{"$inc": bson.M{"quantity": delta}},
		opts,
	)
	if err != nil {
		return fmt.Errorf("add reservation: %w", err)
	}
	return nil
}

// DeleteReservation removes one reservation mirror record.
func (s *Store) DeleteReservation(ctx context.Context, cartID, variantID string) error {
	if _, err := s.Reservations.DeleteOne(ctx, bson.M{"cartid": cartID, "variantid": variantID}); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// DeleteReservations removes all of a cart's reservation mirrors.
func (s *Store) DeleteReservations(ctx context.Context, cartID string) error {
	if _, err := s.Reservations.DeleteMany(ctx, bson.M{"cartid": cartID}); err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	return nil
}

// ListReservations returns the held quantities for a session cart.
func (s *Store) ListReservations(ctx context.Context, cartID string) ([]models.Reservation, error) {
	cursor, err := s.Reservations.Find(ctx, bson.M{"cartid": cartID})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []models.Reservation
	if err := cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("read reservations: %w", err)
	}
	if reservations == nil {
		reservations = []models.Reservation{}
	}
	return reservations, nil
}

// EnsureMeta creates the cart's metadata row if it does not exist yet,
// with status waiting and the default reservation window.
func (s *Store) EnsureMeta(ctx context.Context, cartID, userID string, expire time.Time) error {
	now := time.Now()
	setOnInsert := bson.M{
		"status":     models.StatusWaiting,
		"expiredate": expire,
		"createdat":  now,
	}
	if userID != "" {
		setOnInsert["userid"] = userID
	}
	opts := options.Update().SetUpsert(true)
	_, err := s.CartMeta.UpdateOne(ctx,
		bson.M{"cartid": cartID},
		bson.M{
			"$setOnInsert": setOnInsert,
			"$set":         bson.M{"updatedat": now},
		},
		opts,
	)
	if err != nil {
		return fmt.Errorf("ensure cart meta: %w", err)
	}
	return nil
}

// GetMeta returns the cart's metadata row.
func (s *Store) GetMeta(ctx context.Context, cartID string) (*models.CartMeta, error) {
	var meta models.CartMeta
	err := s.CartMeta.FindOne(ctx, bson.M{"cartid": cartID}).Decode(&meta)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cart meta: %w", err)
	}
	return &meta, nil
}

// SaveMeta replaces the cart's metadata row.
func (s *Store) SaveMeta(ctx context.Context, meta *models.CartMeta) error {
	meta.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	if _, err := s.CartMeta.ReplaceOne(ctx, bson.M{"cartid": meta.CartID}, meta, opts); err != nil {
		return fmt.Errorf("save cart meta: %w", err)
	}
	return nil
}

// ExpiredCarts returns metadata rows whose pay-by deadline has passed.
// Rows with a null expire date are settled and never revisited.
func (s *Store) ExpiredCarts(ctx context.Context, now time.Time) ([]models.CartMeta, error) {
	filter := bson.M{"expiredate": bson.M{"$ne": nil, "$lte": now}}
	cursor, err := s.CartMeta.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find expired carts: %w", err)
	}
	defer cursor.Close(ctx)

	var metas []models.CartMeta
	if err := cursor.All(ctx, &metas); err != nil {
		return nil, fmt.Errorf("read expired carts: %w", err)
	}
	return metas, nil
}

// MarkCancelled flags the cart's pending record as cancelled and
// clears the expire date so the sweep never picks it up again.
func (s *Store) MarkCancelled(ctx context.Context, cartID string) error {
	_, err := s.CartMeta.UpdateOne(ctx,
		bson.M{"cartid": cartID},
		bson.M{"$set": bson.M{
			"status":     models.StatusCancelled,
			"expiredate": nil,
			"updatedat":  time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return nil
}

// InsertPurchases stores the immutable post-confirmation records.
func (s *Store) InsertPurchases(ctx context.Context, purchases []models.Purchase) error {
	if len(purchases) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(purchases))
	for _, p := range purchases {
		docs = append(docs, p)
	}
	if _, err := s.Purchases.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert purchases: %w", err)
	}
	return nil
}
