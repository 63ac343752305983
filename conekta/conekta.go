// Package conekta is a thin client for the slice of the Conekta API
// the checkout flow uses: customers and orders. Gateway failures are
// surfaced verbatim; the caller never retries locally.
package conekta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Payment method types understood by the orders endpoint.
const (
	MethodSpei = "spei"
	MethodCash = "cash"
)

// Checkout types for hosted redirect payments.
const CheckoutHostedPayment = "HostedPayment"

type LineItem struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type ShippingLine struct {
	Amount  int64  `json:"amount"`
	Carrier string `json:"carrier,omitempty"`
}

type CustomerInfo struct {
	CustomerID string `json:"customer_id"`
}

type Checkout struct {
	Type                  string   `json:"type"`
	AllowedPaymentMethods []string `json:"allowed_payment_methods"`
}

type PaymentMethod struct {
	Type      string `json:"type"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

type Charge struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	Currency      string         `json:"currency"`
	LineItems     []LineItem     `json:"line_items"`
	ShippingLines []ShippingLine `json:"shipping_lines,omitempty"`
	CustomerInfo  CustomerInfo   `json:"customer_info"`
	Checkout      *Checkout      `json:"checkout,omitempty"`
	Charges       []Charge       `json:"charges,omitempty"`
}

// ChargePaymentMethod carries the disclosure fields whose shape varies
// by requested method: bank_transfer_payment exposes the CLABE, while
// cash_payment exposes the OXXO reference and barcode.
type ChargePaymentMethod struct {
	Type       string `json:"type"`
	Bank       string `json:"bank,omitempty"`
	CLABE      string `json:"clabe,omitempty"`
	Reference  string `json:"reference,omitempty"`
	BarcodeURL string `json:"barcode_url,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
}

type OrderCharge struct {
	PaymentMethod ChargePaymentMethod `json:"payment_method"`
}

// Order is the create-order response.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Checkout *struct {
		ID string `json:"id"`
	} `json:"checkout,omitempty"`
	Charges *struct {
		Data []OrderCharge `json:"data"`
	} `json:"charges,omitempty"`
}

// FirstCharge returns the order's first charge, if any.
func (o *Order) FirstCharge() (ChargePaymentMethod, bool) {
	if o.Charges == nil || len(o.Charges.Data) == 0 {
		return ChargePaymentMethod{}, false
	}
	return o.Charges.Data[0].PaymentMethod, true
}

// Client talks to the Conekta REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCustomer registers a buyer and returns the gateway customer
// id, which callers cache on the user record or session credential.
func (c *Client) CreateCustomer(ctx context.Context, name, email, phone string) (string, error) {
	payload := map[string]string{"name": name, "email": email, "phone": phone}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/customers", payload, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateOrder creates a gateway order: a hosted-checkout redirect when
// req.Checkout is set, or a spei/cash charge when req.Charges is set.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	var order Order
	if err := c.post(ctx, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("conekta: marshal %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("conekta: build request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.conekta-v2.0.0+json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("conekta: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("conekta: %s returned %d: %s", path, resp.StatusCode, detail)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("conekta: decode %s response: %w", path, err)
	}
	return nil
}
