package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"tienda/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenTTL = 15 * time.Minute

	// RefreshTTL bounds refresh tokens; stores stamp the matching
	// expiry next to the hashed token.
	RefreshTTL = 7 * 24 * time.Hour

	// AccessHeader is where new access tokens are surfaced; clients
	// echo them back as "Authorization: Bearer <token>".
	AccessHeader = "X-Access-Token"

	// RefreshCookie holds the refresh token, http-only and secure.
	RefreshCookie = "refresh_token"
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	UserID  string `json:"userId"`
	CartID  string `json:"cartId"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Refresh bool   `json:"refresh,omitempty"`
	jwt.RegisteredClaims
}

// Identity is a caller resolved to a single cart id. Session is
// non-nil exactly when the caller is anonymous; downstream code only
// branches on the owner tag where a user id must be stamped.
type Identity struct {
	CartID  string
	UserID  string
	Email   string
	IsAdmin bool
	Session *Session
}

// Anonymous reports whether the caller carries no authenticated user.
func (id Identity) Anonymous() bool { return id.UserID == "" }

// Issued is a credential the edge must hand back to the caller. It is
// never silently dropped: middleware writes it onto the response.
type Issued struct {
	Access  string
	Refresh string
	Session *Session
}

// Signer mints and verifies the credential surface.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// AccessToken mints a short-lived access token for the user.
func (s *Signer) AccessToken(u models.User) (string, error) {
	return s.sign(u, false, time.Now().Add(accessTokenTTL))
}

// RefreshToken mints a long-lived refresh token for the user.
func (s *Signer) RefreshToken(u models.User) (string, error) {
	return s.sign(u, true, time.Now().Add(RefreshTTL))
}

// Pair mints a fresh access/refresh pair embedding the user's current
// cart id. Called on login, register, and every cart rotation.
func (s *Signer) Pair(u models.User) (access, refresh string, err error) {
	if access, err = s.AccessToken(u); err != nil {
		return "", "", err
	}
	if refresh, err = s.RefreshToken(u); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Signer) sign(u models.User, refresh bool, expires time.Time) (string, error) {
	claims := &Claims{
		UserID:  u.UserID,
		CartID:  u.CartID,
		Email:   u.Email,
		IsAdmin: u.IsAdmin,
		Refresh: refresh,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti keeps two tokens minted within the same second
			// distinct, so rotation always invalidates the old hash.
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token and returns its claims.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Resolve derives the caller's identity from the request credentials.
// Precedence: valid access token, then valid refresh token (minting a
// replacement access token), then the session credential, then a
// freshly minted session. Invalid credentials never fail the request.
func (s *Signer) Resolve(r *http.Request) (Identity, *Issued) {
	if raw := bearerToken(r); raw != "" {
		if claims, err := s.Parse(raw); err == nil && !claims.Refresh {
			return Identity{
				CartID:  claims.CartID,
				UserID:  claims.UserID,
				Email:   claims.Email,
				IsAdmin: claims.IsAdmin,
			}, nil
		}
	}

	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		if claims, err := s.Parse(cookie.Value); err == nil && claims.Refresh {
			// The refresh token keeps its remaining lifetime; only
			// the access token is replaced.
			access, err := s.sign(models.User{
				UserID:  claims.UserID,
				CartID:  claims.CartID,
				Email:   claims.Email,
				IsAdmin: claims.IsAdmin,
			}, false, time.Now().Add(accessTokenTTL))
			if err == nil {
				return Identity{
					CartID:  claims.CartID,
					UserID:  claims.UserID,
					Email:   claims.Email,
					IsAdmin: claims.IsAdmin,
				}, &Issued{Access: access}
			}
		}
	}

	if raw := r.Header.Get(SessionHeader); raw != "" {
		if session, err := DecodeSession(raw); err == nil {
			return Identity{CartID: session.CartID, Session: session}, nil
		}
	}

	session := NewSession()
	return Identity{CartID: session.CartID, Session: session}, &Issued{Session: session}
}

// Write surfaces issued credentials on the response.
func Write(w http.ResponseWriter, issued *Issued) {
	if issued == nil {
		return
	}
	if issued.Access != "" {
		w.Header().Set(AccessHeader, issued.Access)
	}
	if issued.Session != nil {
		w.Header().Set(SessionHeader, issued.Session.Encode())
	}
	if issued.Refresh != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     RefreshCookie,
			Value:    issued.Refresh,
			Path:     "/",
			Expires:  time.Now().Add(RefreshTTL),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// HashToken returns the sha256 digest stored alongside the user so a
// raw refresh token never sits in the database.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

type contextKey string

const identityKey contextKey = "identity"

// WithContext stores the resolved identity on the request context.
func WithContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext retrieves the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
