package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tienda/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.Users.FindOne(ctx, bson.M{"userid": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := s.Users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// InsertUser registers a new user.
func (s *Store) InsertUser(ctx context.Context, user models.User) error {
	if _, err := s.Users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SetUserCartID rebinds the user's active cart. Called on every cart
// rotation so the shopper gets an empty cart going forward.
func (s *Store) SetUserCartID(ctx context.Context, userID, cartID string) error {
	res, err := s.Users.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"cartid": cartID}},
	)
	if err != nil {
		return fmt.Errorf("set user cart id: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserCustomerID caches the gateway customer id on the user record.
func (s *Store) SetUserCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := s.Users.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{"customerid": customerID}},
	)
	if err != nil {
		return fmt.Errorf("set user customer id: %w", err)
	}
	return nil
}

// AddUserAddress appends a shipping address to the user record.
func (s *Store) AddUserAddress(ctx context.Context, userID string, addr models.Address) error {
	_, err := s.Users.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$push": bson.M{"addresses": addr}},
	)
	if err != nil {
		return fmt.Errorf("add user address: %w", err)
	}
	return nil
}

// SetUserRefreshToken stores the hashed refresh token and stamps the
// login time.
func (s *Store) SetUserRefreshToken(ctx context.Context, userID, hashed string, expiry time.Time) error {
	_, err := s.Users.UpdateOne(ctx,
		bson.M{"userid": userID},
		bson.M{"$set": bson.M{
			"refresh_token":  hashed,
			"refresh_expiry": expiry,
			"last_login":     time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return nil
}
