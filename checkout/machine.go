package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"tienda/conekta"
	"tienda/events"
	"tienda/models"
	"tienda/utils"

	"github.com/google/uuid"
)

const currency = "MXN"

// Outcome is the typed result of a checkout branch.
type Outcome interface{ outcome() }

// Redirect sends the shopper to a hosted gateway checkout. The cart
// may be retried on failure, so for in-store card payments the cart
// id is not rotated.
type Redirect struct {
	CheckoutID string `json:"checkoutId"`
	CartID     string `json:"cartId"`
}

// Immediate settles without any gateway interaction (cash paths).
type Immediate struct {
	CartID string `json:"cartId"`
}

// Pending reserves the cart awaiting an offline payment; the
// disclosure fields tell the buyer how to pay.
type Pending struct {
	CartID   string           `json:"cartId"`
	BankInfo *models.BankInfo `json:"bankInfo,omitempty"`
	OxxoInfo *models.OxxoInfo `json:"oxxoInfo,omitempty"`
}

func (Redirect) outcome()  {}
func (Immediate) outcome() {}
func (Pending) outcome()   {}

type branchKey struct {
	delivery string
	payment  string
}

type branchFunc func(ctx context.Context, f *flow) (Outcome, error)

// buildTable lays out the full (delivery, payment) dispatch table so
// every reachable branch is explicit and testable in isolation.
func buildTable(s *Service) map[branchKey]branchFunc {
	table := map[branchKey]branchFunc{
		{models.DeliveryStore, models.PaymentCash}:    s.payInStore,
		{models.DeliveryCity, models.PaymentCash}:     s.cashOnDelivery,
		{models.DeliveryNational, models.PaymentCash}: s.cashOnDelivery,

		{models.DeliveryStore, models.PaymentCard}:    s.cardInStore,
		{models.DeliveryStore, models.PaymentConekta}: s.cardInStore,

		{models.DeliveryCity, models.PaymentCard}:        s.cardShipped,
		{models.DeliveryCity, models.PaymentConekta}:     s.cardShipped,
		{models.DeliveryNational, models.PaymentCard}:    s.cardShipped,
		{models.DeliveryNational, models.PaymentConekta}: s.cardShipped,
	}
	for _, delivery := range []string{models.DeliveryStore, models.DeliveryCity, models.DeliveryNational} {
		table[branchKey{delivery, models.PaymentBankTransfer}] = s.offlineCharge
		table[branchKey{delivery, models.PaymentOxxo}] = s.offlineCharge
	}
	return table
}

// payInStore reserves the cart for in-person payment. Metadata only;
// no gateway call, no cart rotation, and the original reservation
// window stays in force so a repeat submission is idempotent.
func (s *Service) payInStore(ctx context.Context, f *flow) (Outcome, error) {
	f.meta.PayInCash = true
	f.meta.Delivery = f.req.Delivery
	f.meta.Contact = &f.req.Contact
	if err := s.store.SaveMeta(ctx, f.meta); err != nil {
		return nil, err
	}

	if f.req.Contact.Email != "" {
		expires := time.Now().Add(s.cfg.CartExpiry)
		if f.meta.ExpireDate != nil {
			expires = *f.meta.ExpireDate
		}
		if err := s.mailer.SendPickupConfirmation(f.req.Contact.Email, f.id.CartID, expires); err != nil {
			log.Printf("checkout: pickup mail for %s: %v", f.id.CartID, err)
		}
	}
	s.emit(ctx, events.OrderCreated, f, "pay in store")
	return Immediate{CartID: f.id.CartID}, nil
}

// cashOnDelivery marks the cart for payment on delivery. Existing
// expire date and gateway ids stay untouched.
func (s *Service) cashOnDelivery(ctx context.Context, f *flow) (Outcome, error) {
	f.meta.PayInCash = true
	f.meta.Delivery = f.req.Delivery
	f.meta.Contact = &f.req.Contact
	if f.req.Address != nil || f.req.AddressID != "" {
		if err := s.persistAddress(ctx, f); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveMeta(ctx, f.meta); err != nil {
		return nil, err
	}
	s.emit(ctx, events.OrderCreated, f, "cash on delivery")
	return Immediate{CartID: f.id.CartID}, nil
}

// cardInStore creates a hosted-checkout gateway order for in-store
// card payment. The cart id is not rotated: the shopper may retry the
// payment against the same cart.
func (s *Service) cardInStore(ctx context.Context, f *flow) (Outcome, error) {
	customerID, err := s.resolveCustomer(ctx, f)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, conekta.OrderRequest{
		Currency:     currency,
		LineItems:    gatewayLineItems(f.items),
		CustomerInfo: conekta.CustomerInfo{CustomerID: customerID},
		Checkout: &conekta.Checkout{
			Type:                  conekta.CheckoutHostedPayment,
			AllowedPaymentMethods: []string{"card"},
		},
	})
	if err != nil {
		return nil, gatewayErr(err)
	}

	f.meta.Delivery = f.req.Delivery
	f.meta.Contact = &f.req.Contact
	f.meta.OrderID = order.ID
	if order.Checkout != nil {
		f.meta.CheckoutID = order.Checkout.ID
	}
	if err := s.store.SaveMeta(ctx, f.meta); err != nil {
		return nil, err
	}
	s.emit(ctx, events.OrderCreated, f, "card in store")
	return Redirect{CheckoutID: f.meta.CheckoutID, CartID: f.id.CartID}, nil
}

// cardShipped is the city/national card path: hosted checkout plus a
// carrier shipping line, address persistence, and cart rotation so
// the shopper keeps shopping while this cart awaits payment.
func (s *Service) cardShipped(ctx context.Context, f *flow) (Outcome, error) {
	if err := s.persistAddress(ctx, f); err != nil {
		return nil, err
	}
	customerID, err := s.resolveCustomer(ctx, f)
	if err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, conekta.OrderRequest{
		Currency:      currency,
		LineItems:     gatewayLineItems(f.items),
		ShippingLines: []conekta.ShippingLine{{Amount: s.shippingFee(f.req.Delivery), Carrier: "estafeta"}},
		CustomerInfo:  conekta.CustomerInfo{CustomerID: customerID},
		Checkout: &conekta.Checkout{
			Type:                  conekta.CheckoutHostedPayment,
			AllowedPaymentMethods: []string{"card"},
		},
	})
	if err != nil {
		return nil, gatewayErr(err)
	}

	f.meta.Delivery = f.req.Delivery
	f.meta.Contact = &f.req.Contact
	f.meta.OrderID = order.ID
	if order.Checkout != nil {
		f.meta.CheckoutID = order.Checkout.ID
	}
	if err := s.store.SaveMeta(ctx, f.meta); err != nil {
		return nil, err
	}
	if _, err := s.rotateCart(ctx, f); err != nil {
		return nil, err
	}
	s.emit(ctx, events.OrderCreated, f, "card shipped")
	return Redirect{CheckoutID: f.meta.CheckoutID, CartID: f.id.CartID}, nil
}

// offlineCharge is the bank-transfer/OXXO path: a gateway charge with
// an explicit 3-day expiry, disclosure fields written onto the old
// cart, cart rotation, and a payment-instructions mail.
func (s *Service) offlineCharge(ctx context.Context, f *flow) (Outcome, error) {
	if f.req.Delivery != models.DeliveryStore {
		if err := s.persistAddress(ctx, f); err != nil {
			return nil, err
		}
	}
	customerID, err := s.resolveCustomer(ctx, f)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.cfg.OfflineExpiry)
	method := conekta.MethodSpei
	if f.req.Payment == models.PaymentOxxo {
		method = conekta.MethodCash
	}

	req := conekta.OrderRequest{
		Currency:     currency,
		LineItems:    gatewayLineItems(f.items),
		CustomerInfo: conekta.CustomerInfo{CustomerID: customerID},
		Charges: []conekta.Charge{{
			PaymentMethod: conekta.PaymentMethod{Type: method, ExpiresAt: expiresAt.Unix()},
		}},
	}
	if f.req.Delivery != models.DeliveryStore {
		req.ShippingLines = []conekta.ShippingLine{{Amount: s.shippingFee(f.req.Delivery), Carrier: "estafeta"}}
	}

	order, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, gatewayErr(err)
	}

	f.meta.Delivery = f.req.Delivery
	f.meta.Contact = &f.req.Contact
	f.meta.OrderID = order.ID
	f.meta.ExpireDate = &expiresAt

	pending := Pending{CartID: f.id.CartID}
	if charge, ok := order.FirstCharge(); ok {
		switch charge.Type {
		case "bank_transfer_payment":
			f.meta.BankInfo = &models.BankInfo{
				Bank:      charge.Bank,
				CLABE:     charge.CLABE,
				Amount:    order.Amount,
				ExpiresAt: expiresAt,
			}
			pending.BankInfo = f.meta.BankInfo
		case "cash_payment":
			f.meta.OxxoInfo = &models.OxxoInfo{
				Reference:  charge.Reference,
				BarcodeURL: charge.BarcodeURL,
				Amount:     order.Amount,
				ExpiresAt:  expiresAt,
			}
			pending.OxxoInfo = f.meta.OxxoInfo
		}
	}

	if err := s.store.SaveMeta(ctx, f.meta); err != nil {
		return nil, err
	}
	if _, err := s.rotateCart(ctx, f); err != nil {
		return nil, err
	}

	s.sendOfflineMail(f, pending)
	s.emit(ctx, events.OrderCreated, f, f.req.Payment)
	return pending, nil
}

// sendOfflineMail picks the notification per spec: store pickups get
// the informational reservation mail, shipped orders get the payment
// instructions for their method.
func (s *Service) sendOfflineMail(f *flow, pending Pending) {
	to := f.req.Contact.Email
	if to == "" {
		return
	}

	var err error
	switch {
	case f.req.Delivery == models.DeliveryStore:
		err = s.mailer.SendPickupConfirmation(to, f.id.CartID, *f.meta.ExpireDate)
	case pending.BankInfo != nil:
		err = s.mailer.SendBankInstructions(to, *pending.BankInfo)
	case pending.OxxoInfo != nil:
		err = s.mailer.SendOxxoInstructions(to, *pending.OxxoInfo)
	}
	if err != nil {
		log.Printf("checkout: instructions mail for %s: %v", f.id.CartID, err)
	}
}

func (s *Service) shippingFee(delivery string) int64 {
	switch delivery {
	case models.DeliveryCity:
		return s.cfg.CityShippingFee
	case models.DeliveryNational:
		return s.cfg.NationalShippingFee
	default:
		return 0
	}
}

func (s *Service) emit(ctx context.Context, event string, f *flow, detail string) {
	s.emitter.Emit(ctx, event, events.Message{
		CartID: f.id.CartID,
		UserID: f.id.UserID,
		Detail: detail,
	})
}

func gatewayLineItems(items []models.LineItem) []conekta.LineItem {
	out := make([]conekta.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, conekta.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice(),
			Quantity:  item.Quantity,
		})
	}
	return out
}

func gatewayErr(err error) error {
	return fmt.Errorf("%w: %v", ErrGateway, err)
}

func newCartID() string { return utils.NewCartID() }

func newAddressID() string { return "a" + uuid.NewString() }
