package identity

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"tienda/models"
	"tienda/utils"
)

// SessionHeader carries the anonymous session credential in both
// directions; the client echoes back whatever the server last issued.
const SessionHeader = "X-Session"

// Session is the anonymous shopper's credential payload: an opaque
// base64 JSON blob holding the cart id plus whatever partial checkout
// state has accumulated (contact, address, gateway customer).
type Session struct {
	CartID     string          `json:"cartId"`
	CustomerID string          `json:"customerId,omitempty"`
	Contact    *models.Contact `json:"contact,omitempty"`
	Address    *models.Address `json:"address,omitempty"`
}

var errBadSession = errors.New("invalid session credential")

// NewSession mints a session with a fresh cart id.
func NewSession() *Session {
	return &Session{CartID: utils.NewCartID()}
}

// Encode serializes the session to its wire form.
func (s *Session) Encode() string {
	raw, _ := json.Marshal(s)
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeSession parses a session credential. A blob that does not
// decode, or that carries no cart id, is invalid; callers respond by
// minting a fresh session rather than failing the request.
func DecodeSession(credential string) (*Session, error) {
	raw, err := base64.StdEncoding.DecodeString(credential)
	if err != nil {
		return nil, errBadSession
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errBadSession
	}
	if s.CartID == "" {
		return nil, errBadSession
	}
	return &s, nil
}
