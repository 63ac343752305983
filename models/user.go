package models

import "time"

// User is an authenticated shopper. CartID points at the currently
// active cart; checkout rotates it when a cart is closed awaiting
// payment. CustomerID caches the payment gateway customer so repeat
// checkouts do not recreate one.
type User struct {
	UserID        string    `json:"userId" bson:"userid"`
	Username      string    `json:"username" bson:"username"`
	Email         string    `json:"email" bson:"email"`
	Password      string    `json:"-" bson:"password"`
	IsAdmin       bool      `json:"isAdmin" bson:"isadmin"`
	CartID        string    `json:"cartId" bson:"cartid"`
	CustomerID    string    `json:"-" bson:"customerid,omitempty"`
	Phone         string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Addresses     []Address `json:"addresses,omitempty" bson:"addresses,omitempty"`
	RefreshToken  string    `json:"-" bson:"refresh_token,omitempty"`
	RefreshExpiry time.Time `json:"-" bson:"refresh_expiry,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	LastLogin     time.Time `json:"-" bson:"last_login,omitempty"`
}
