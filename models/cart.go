package models

import "time"

// Delivery methods.
const (
	DeliveryStore    = "store"
	DeliveryCity     = "city"
	DeliveryNational = "national"
)

// Payment methods accepted at checkout.
const (
	PaymentCash         = "cash"
	PaymentCard         = "card"
	PaymentConekta      = "conekta"
	PaymentBankTransfer = "bank_transfer"
	PaymentOxxo         = "oxxo"
)

// Cart statuses.
const (
	StatusWaiting   = "waiting"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// LineItem is one entry of a cart. Price, discount and display fields
// are snapshotted at add-time so later catalog edits never change a
// pending cart's charge.
type LineItem struct {
	ItemID        string            `json:"itemId" bson:"itemid"`
	CartID        string            `json:"cartId" bson:"cartid"`
	VariantID     string            `json:"variantId" bson:"variantid"`
	ProductID     string            `json:"productId" bson:"productid"`
	Quantity      int               `json:"quantity" bson:"quantity"`
	Price         int64             `json:"price" bson:"price"`
	DiscountPrice int64             `json:"discountPrice,omitempty" bson:"discountprice,omitempty"`
	Name          string            `json:"name" bson:"name"`
	SKU           string            `json:"sku" bson:"sku"`
	Images        []string          `json:"images,omitempty" bson:"images,omitempty"`
	Options       map[string]string `json:"options,omitempty" bson:"options,omitempty"`
	AddedAt       time.Time         `json:"addedAt" bson:"addedat"`
}

// UnitPrice is the effective charge per unit, honoring the discount
// snapshot when present.
func (li *LineItem) UnitPrice() int64 {
	if li.DiscountPrice > 0 {
		return li.DiscountPrice
	}
	return li.Price
}

// Reservation mirrors a session cart's line item quantity so held
// stock can be audited without re-deriving it from the cart.
type Reservation struct {
	CartID    string `json:"cartId" bson:"cartid"`
	VariantID string `json:"variantId" bson:"variantid"`
	Quantity  int    `json:"quantity" bson:"quantity"`
}

// Contact is the buyer contact snapshot taken at checkout.
type Contact struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Phone string `json:"phone" bson:"phone"`
}

// Address is a shipping address, stored on the user document for
// authenticated buyers or inside the session credential otherwise.
type Address struct {
	AddressID string `json:"addressId" bson:"addressid"`
	Street    string `json:"street" bson:"street"`
	City      string `json:"city" bson:"city"`
	State     string `json:"state" bson:"state"`
	Zip       string `json:"zip" bson:"zip"`
}

// BankInfo holds SPEI disclosure fields returned by the gateway.
type BankInfo struct {
	Bank      string    `json:"bank" bson:"bank"`
	CLABE     string    `json:"clabe" bson:"clabe"`
	Amount    int64     `json:"amount" bson:"amount"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresat"`
}

// OxxoInfo holds OXXO cash disclosure fields returned by the gateway.
type OxxoInfo struct {
	Reference  string    `json:"reference" bson:"reference"`
	BarcodeURL string    `json:"barcodeUrl" bson:"barcodeurl"`
	Amount     int64     `json:"amount" bson:"amount"`
	ExpiresAt  time.Time `json:"expiresAt" bson:"expiresat"`
}

// CartMeta is the per-cart order record. Created on first add, mutated
// by checkout, cancelled by the expiration sweep. ExpireDate nil means
// the cart is settled and the sweep never revisits it.
type CartMeta struct {
	CartID     string     `json:"cartId" bson:"cartid"`
	UserID     string     `json:"userId,omitempty" bson:"userid,omitempty"`
	Status     string     `json:"status" bson:"status"`
	PayInCash  bool       `json:"payInCash" bson:"payincash"`
	Delivery   string     `json:"delivery,omitempty" bson:"delivery,omitempty"`
	ExpireDate *time.Time `json:"expireDate,omitempty" bson:"expiredate,omitempty"`
	Contact    *Contact   `json:"contact,omitempty" bson:"contact,omitempty"`
	Address    *Address   `json:"address,omitempty" bson:"address,omitempty"`
	OrderID    string     `json:"orderId,omitempty" bson:"orderid,omitempty"`
	CheckoutID string     `json:"checkoutId,omitempty" bson:"checkoutid,omitempty"`
	BankInfo   *BankInfo  `json:"bankInfo,omitempty" bson:"bankinfo,omitempty"`
	OxxoInfo   *OxxoInfo  `json:"oxxoInfo,omitempty" bson:"oxxoinfo,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" bson:"createdat"`
	UpdatedAt  time.Time  `json:"updatedAt" bson:"updatedat"`
}

// Purchase is the immutable post-confirmation copy of a line item.
type Purchase struct {
	PurchaseID    string    `json:"purchaseId" bson:"purchaseid"`
	CartID        string    `json:"cartId" bson:"cartid"`
	UserID        string    `json:"userId,omitempty" bson:"userid,omitempty"`
	VariantID     string    `json:"variantId" bson:"variantid"`
	ProductID     string    `json:"productId" bson:"productid"`
	Quantity      int       `json:"quantity" bson:"quantity"`
	Price         int64     `json:"price" bson:"price"`
	DiscountPrice int64     `json:"discountPrice,omitempty" bson:"discountprice,omitempty"`
	Name          string    `json:"name" bson:"name"`
	SKU           string    `json:"sku" bson:"sku"`
	BoughtAt      time.Time `json:"boughtAt" bson:"boughtat"`
}
