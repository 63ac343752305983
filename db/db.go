package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a document does not exist or does not
// belong to the given cart/user.
var ErrNotFound = errors.New("not found")

// Store holds the MongoDB collections. It is constructed once in main
// and injected into every service; there are no package-level handles.
type Store struct {
	client *mongo.Client

	Products     *mongo.Collection
	VariantStock *mongo.Collection
	CartItems    *mongo.Collection
	CartMeta     *mongo.Collection
	Reservations *mongo.Collection
	Purchases    *mongo.Collection
	Users        *mongo.Collection
}

// Connect dials MongoDB and builds the store.
func Connect(ctx context.Context, cfg config.Config) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.MongoURI)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	database := client.Database(cfg.MongoDB)
	return &Store{
		client:       client,
		Products:     database.Collection("products"),
		VariantStock: database.Collection("variant_stock"),
		CartItems:    database.Collection("cart_items"),
		CartMeta:     database.Collection("cart_meta"),
		Reservations: database.Collection("reservations"),
		Purchases:    database.Collection("purchases"),
		Users:        database.Collection("users"),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
