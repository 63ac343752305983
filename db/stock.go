package db

import (
	"context"
	"errors"
	"fmt"

	"tienda/inventory"
	"tienda/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DecrementStock performs the conditional check-and-decrement as one
// findOneAndUpdate so two shoppers racing on the last unit cannot both
// win. The nested variant counter inside the product document is
// updated to the same value in the same call path (dual write).
func (s *Store) DecrementStock(ctx context.Context, variantID string, qty int) (int, error) {
	filter := bson.M{"variantid": variantID, "available": bson.M{"$gte": qty}}
	update := bson.M{"$inc": bson.M{"available": -qty}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var stock models.VariantStock
	err := s.VariantStock.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, inventory.ErrOutOfStock
		}
		return 0, fmt.Errorf("decrement stock %s: %w", variantID, err)
	}

	if err := s.syncVariantCounter(ctx, variantID, stock.Available); err != nil {
		return 0, err
	}
	return stock.Available, nil
}

// IncrementStock adds qty back unconditionally. Overshoot past total
// from a double release is tolerated rather than blocking recovery.
func (s *Store) IncrementStock(ctx context.Context, variantID string, qty int) (int, error) {
	filter := bson.M{"variantid": variantID}
	update := bson.M{"$inc": bson.M{"available": qty}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var stock models.VariantStock
	err := s.VariantStock.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment stock %s: %w", variantID, err)
	}

	if err := s.syncVariantCounter(ctx, variantID, stock.Available); err != nil {
		return 0, err
	}
	return stock.Available, nil
}

// syncVariantCounter writes the committed availability onto the
// nested variant so both copies agree after every operation.
func (s *Store) syncVariantCounter(ctx context.Context, variantID string, available int) error {
	_, err := s.Products.UpdateOne(ctx,
		bson.M{"variants.variantid": variantID},
		bson.M{"$set": bson.M{"variants.$.available": available}},
	)
	if err != nil {
		return fmt.Errorf("sync variant counter %s: %w", variantID, err)
	}
	return nil
}

// StockCounters returns both copies of the availability counter.
func (s *Store) StockCounters(ctx context.Context, variantID string) (int, int, error) {
	var stock models.VariantStock
	err := s.VariantStock.FindOne(ctx, bson.M{"variantid": variantID}).Decode(&stock)
	if err != nil {
		return 0, 0, fmt.Errorf("stock record %s: %w", variantID, err)
	}

	var product models.Product
	err = s.Products.FindOne(ctx, bson.M{"variants.variantid": variantID}).Decode(&product)
	if err != nil {
		return 0, 0, fmt.Errorf("product for variant %s: %w", variantID, err)
	}
	variant, ok := product.Variant(variantID)
	if !ok {
		return 0, 0, fmt.Errorf("variant %s missing from product %s", variantID, product.ProductID)
	}
	return stock.Available, variant.Available, nil
}

// StockVariantIDs lists every variant with a stock record.
func (s *Store) StockVariantIDs(ctx context.Context) ([]string, error) {
	cursor, err := s.VariantStock.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list stock records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.VariantStock
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("read stock records: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.VariantID)
	}
	return ids, nil
}

// VariantSnapshot reads a variant's current price and display fields
// for the add-time snapshot on a line item.
func (s *Store) VariantSnapshot(ctx context.Context, variantID string) (models.Product, models.Variant, error) {
	var product models.Product
	err := s.Products.FindOne(ctx, bson.M{"variants.variantid": variantID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Product{}, models.Variant{}, ErrNotFound
		}
		return models.Product{}, models.Variant{}, fmt.Errorf("variant snapshot %s: %w", variantID, err)
	}
	variant, ok := product.Variant(variantID)
	if !ok {
		return models.Product{}, models.Variant{}, ErrNotFound
	}
	return product, variant, nil
}
