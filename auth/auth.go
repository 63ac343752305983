// Package auth registers and signs in shoppers. Passwords are bcrypt
// hashed; refresh tokens are stored hashed so a database leak cannot
// replay them.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tienda/identity"
	"tienda/models"
	"tienda/utils"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUsernameTaken      = errors.New("auth: username already taken")
	ErrMissingField       = errors.New("auth: missing required field")
)

// Store is the user persistence surface.
type Store interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	InsertUser(ctx context.Context, user models.User) error
	SetUserRefreshToken(ctx context.Context, userID, hashed string, expiry time.Time) error
}

// Service implements register, login, refresh and logout.
type Service struct {
	store    Store
	signer   *identity.Signer
	notFound func(error) bool
}

// NewService wires the user store and token signer. notFound
// classifies store lookup misses so the service stays storage
// agnostic.
func NewService(store Store, signer *identity.Signer, notFound func(error) bool) *Service {
	return &Service{store: store, signer: signer, notFound: notFound}
}

// Credentials carries a login or registration request body.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Register creates a user with a fresh cart id and returns the user
// plus an issued token pair.
func (s *Service) Register(ctx context.Context, creds Credentials) (models.User, identity.Issued, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return models.User{}, identity.Issued{}, ErrMissingField
	}

	if _, err := s.store.GetUserByUsername(ctx, creds.Username); err == nil {
		return models.User{}, identity.Issued{}, ErrUsernameTaken
	} else if !s.notFound(err) {
		return models.User{}, identity.Issued{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, identity.Issued{}, err
	}

	user := models.User{
		UserID:    utils.NewUserID(),
		Username:  creds.Username,
		Email:     strings.TrimSpace(creds.Email),
		Password:  string(hashed),
		CartID:    utils.NewCartID(),
		CreatedAt: time.Now(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return models.User{}, identity.Issued{}, err
	}

	issued, err := s.issue(ctx, user)
	return user, issued, err
}

// Login verifies the password and rotates the refresh token.
func (s *Service) Login(ctx context.Context, creds Credentials) (models.User, identity.Issued, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if s.notFound(err) {
			return models.User{}, identity.Issued{}, ErrInvalidCredentials
		}
		return models.User{}, identity.Issued{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)) != nil {
		return models.User{}, identity.Issued{}, ErrInvalidCredentials
	}

	issued, err := s.issue(ctx, user)
	return user, issued, err
}

// Refresh validates a refresh token against the stored hash and mints
// a new pair, invalidating the old refresh token.
func (s *Service) Refresh(ctx context.Context, token string) (models.User, identity.Issued, error) {
	claims, err := s.signer.Parse(token)
	if err != nil || !claims.Refresh {
		return models.User{}, identity.Issued{}, ErrInvalidCredentials
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if s.notFound(err) {
			return models.User{}, identity.Issued{}, ErrInvalidCredentials
		}
		return models.User{}, identity.Issued{}, err
	}
	if user.RefreshToken != identity.HashToken(token) || time.Now().After(user.RefreshExpiry) {
		return models.User{}, identity.Issued{}, ErrInvalidCredentials
	}

	issued, err := s.issue(ctx, user)
	return user, issued, err
}

// Logout revokes the stored refresh token. Unknown users are treated
// as already logged out.
func (s *Service) Logout(ctx context.Context, userID string) error {
	err := s.store.SetUserRefreshToken(ctx, userID, "", time.Time{})
	if err != nil && s.notFound(err) {
		return nil
	}
	return err
}

func (s *Service) issue(ctx context.Context, user models.User) (identity.Issued, error) {
	access, refresh, err := s.signer.Pair(user)
	if err != nil {
		return identity.Issued{}, err
	}
	expiry := time.Now().Add(identity.RefreshTTL)
	if err := s.store.SetUserRefreshToken(ctx, user.UserID, identity.HashToken(refresh), expiry); err != nil {
		return identity.Issued{}, err
	}
	return identity.Issued{Access: access, Refresh: refresh}, nil
}
