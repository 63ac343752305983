package checkout

import (
	"context"
	"errors"
	"log"
	"time"

	"tienda/conekta"
	"tienda/config"
	"tienda/events"
	"tienda/identity"
	"tienda/models"
)

var (
	// ErrUnknownMethod rejects a (delivery, payment) pair outside the
	// dispatch table.
	ErrUnknownMethod = errors.New("unknown delivery or payment method")

	// ErrEmptyCart rejects checkout of a cart with no line items.
	ErrEmptyCart = errors.New("cart has no items")

	// ErrGateway wraps payment gateway failures. No local compensation
	// or retry: the caller re-submits checkout from scratch.
	ErrGateway = errors.New("payment gateway failure")
)

// Store is the persistence surface checkout needs: cart rows plus the
// user fields touched by rotation and customer caching.
type Store interface {
	ListItems(ctx context.Context, cartID string) ([]models.LineItem, error)
	GetMeta(ctx context.Context, cartID string) (*models.CartMeta, error)
	SaveMeta(ctx context.Context, meta *models.CartMeta) error
	DeleteItems(ctx context.Context, cartID string) error
	DeleteReservations(ctx context.Context, cartID string) error
	InsertPurchases(ctx context.Context, purchases []models.Purchase) error

	GetUser(ctx context.Context, userID string) (models.User, error)
	SetUserCartID(ctx context.Context, userID, cartID string) error
	SetUserCustomerID(ctx context.Context, userID, customerID string) error
	AddUserAddress(ctx context.Context, userID string, addr models.Address) error
	SetUserRefreshToken(ctx context.Context, userID, hashed string, expiry time.Time) error
}

// Gateway is the external payment collaborator.
type Gateway interface {
	CreateCustomer(ctx context.Context, name, email, phone string) (string, error)
	CreateOrder(ctx context.Context, req conekta.OrderRequest) (*conekta.Order, error)
}

// Mailer sends the buyer-facing notifications.
type Mailer interface {
	SendPickupConfirmation(to, reference string, expires time.Time) error
	SendBankInstructions(to string, info models.BankInfo) error
	SendOxxoInstructions(to string, info models.OxxoInfo) error
}

// CustomerCache is the fast lookaside for gateway customer ids.
type CustomerCache interface {
	CustomerID(ctx context.Context, key string) string
	SetCustomerID(ctx context.Context, key, customerID string) error
}

// Request is a checkout submission.
type Request struct {
	Delivery  string          `json:"delivery"`
	Payment   string          `json:"payment"`
	Contact   models.Contact  `json:"contact"`
	Address   *models.Address `json:"address,omitempty"`
	AddressID string          `json:"addressId,omitempty"`
}

// Service drives the checkout state machine.
type Service struct {
	store   Store
	gateway Gateway
	mailer  Mailer
	signer  *identity.Signer
	emitter *events.Emitter
	cache   CustomerCache
	cfg     config.Config
	table   map[branchKey]branchFunc
}

func NewService(store Store, gateway Gateway, mailer Mailer, signer *identity.Signer,
	emitter *events.Emitter, cache CustomerCache, cfg config.Config) *Service {
	s := &Service{
		store:   store,
		gateway: gateway,
		mailer:  mailer,
		signer:  signer,
		emitter: emitter,
		cache:   cache,
		cfg:     cfg,
	}
	s.table = buildTable(s)
	return s
}

// flow is the per-checkout working state threaded through a branch.
type flow struct {
	id     identity.Identity
	req    Request
	meta   *models.CartMeta
	items  []models.LineItem
	issued *identity.Issued
}

// Checkout dispatches on (delivery, payment) and runs the matching
// branch. The returned Issued credentials, if any, must be written
// onto the response by the caller.
func (s *Service) Checkout(ctx context.Context, id identity.Identity, req Request) (Outcome, *identity.Issued, error) {
	branch, ok := s.table[branchKey{req.Delivery, req.Payment}]
	if !ok {
		return nil, nil, ErrUnknownMethod
	}

	items, err := s.store.ListItems(ctx, id.CartID)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, ErrEmptyCart
	}
	meta, err := s.store.GetMeta(ctx, id.CartID)
	if err != nil {
		return nil, nil, err
	}

	f := &flow{id: id, req: req, meta: meta, items: items, issued: &identity.Issued{}}
	outcome, err := branch(ctx, f)
	if err != nil {
		return nil, nil, err
	}

	issued := f.issued
	if issued.Access == "" && issued.Refresh == "" && issued.Session == nil {
		issued = nil
	}
	return outcome, issued, nil
}

// rotateCart mints a fresh empty cart id and binds it to whichever
// identity store is authoritative, reissuing credentials that embed
// it. The submitted cart id keeps its line items and is now awaiting
// payment.
func (s *Service) rotateCart(ctx context.Context, f *flow) (string, error) {
	newCartID := newCartID()

	if f.id.Anonymous() {
		session := f.id.Session
		session.CartID = newCartID
		f.issued.Session = session
		return newCartID, nil
	}

	if err := s.store.SetUserCartID(ctx, f.id.UserID, newCartID); err != nil {
		return "", err
	}
	user, err := s.store.GetUser(ctx, f.id.UserID)
	if err != nil {
		return "", err
	}
	access, refresh, err := s.signer.Pair(user)
	if err != nil {
		return "", err
	}
	if err := s.store.SetUserRefreshToken(ctx, user.UserID,
		identity.HashToken(refresh), time.Now().Add(identity.RefreshTTL)); err != nil {
		return "", err
	}
	f.issued.Access = access
	f.issued.Refresh = refresh
	return newCartID, nil
}

// resolveCustomer returns the gateway customer id for the caller,
// creating one on first use and caching it on the authoritative
// identity store so repeat checkouts do not recreate customers.
func (s *Service) resolveCustomer(ctx context.Context, f *flow) (string, error) {
	cacheKey := f.id.UserID
	if f.id.Anonymous() {
		cacheKey = f.id.CartID
		if f.id.Session.CustomerID != "" {
			return f.id.Session.CustomerID, nil
		}
	} else {
		user, err := s.store.GetUser(ctx, f.id.UserID)
		if err != nil {
			return "", err
		}
		if user.CustomerID != "" {
			return user.CustomerID, nil
		}
	}

	if s.cache != nil {
		if cached := s.cache.CustomerID(ctx, cacheKey); cached != "" {
			return cached, nil
		}
	}

	contact := f.req.Contact
	customerID, err := s.gateway.CreateCustomer(ctx, contact.Name, contact.Email, contact.Phone)
	if err != nil {
		return "", gatewayErr(err)
	}

	if f.id.Anonymous() {
		f.id.Session.CustomerID = customerID
		f.issued.Session = f.id.Session
	} else {
		if err := s.store.SetUserCustomerID(ctx, f.id.UserID, customerID); err != nil {
			return "", err
		}
	}
	if s.cache != nil {
		if err := s.cache.SetCustomerID(ctx, cacheKey, customerID); err != nil {
			// cache only; the authoritative copy is already stored
			log.Printf("checkout: cache customer id for %s: %v", cacheKey, err)
		}
	}
	return customerID, nil
}

// persistAddress stores the shipping address on the user record or
// the session credential and snapshots it onto the cart metadata.
func (s *Service) persistAddress(ctx context.Context, f *flow) error {
	if f.req.AddressID != "" && !f.id.Anonymous() {
		user, err := s.store.GetUser(ctx, f.id.UserID)
		if err != nil {
			return err
		}
		for _, addr := range user.Addresses {
			if addr.AddressID == f.req.AddressID {
				f.meta.Address = &addr
				return nil
			}
		}
		return ErrAddressNotFound
	}

	if f.req.Address == nil {
		return ErrAddressRequired
	}
	addr := *f.req.Address
	if addr.AddressID == "" {
		addr.AddressID = newAddressID()
	}

	if f.id.Anonymous() {
		f.id.Session.Address = &addr
		f.issued.Session = f.id.Session
	} else {
		if err := s.store.AddUserAddress(ctx, f.id.UserID, addr); err != nil {
			return err
		}
	}
	f.meta.Address = &addr
	return nil
}

var (
	// ErrAddressNotFound means the given address id does not belong to
	// the resolved user.
	ErrAddressNotFound = errors.New("address not found")

	// ErrAddressRequired means a shipped delivery has no address.
	ErrAddressRequired = errors.New("shipping address required")
)
