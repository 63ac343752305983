package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/identity"
	"tienda/models"
)

var errMiss = errors.New("not found")

type memStore struct {
	users map[string]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*models.User{}}
}

func (s *memStore) GetUser(_ context.Context, userID string) (models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return models.User{}, errMiss
	}
	return *u, nil
}

func (s *memStore) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return *u, nil
		}
	}
	return models.User{}, errMiss
}

func (s *memStore) InsertUser(_ context.Context, user models.User) error {
	cp := user
	s.users[user.UserID] = &cp
	return nil
}

func (s *memStore) SetUserRefreshToken(_ context.Context, userID, hashed string, expiry time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return errMiss
	}
	u.RefreshToken = hashed
	u.RefreshExpiry = expiry
	return nil
}

func newService(store *memStore) *Service {
	signer := identity.NewSigner([]byte("test-secret"))
	return NewService(store, signer, func(err error) bool { return errors.Is(err, errMiss) })
}

func TestRegisterCreatesUserWithFreshCart(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	user, issued, err := svc.Register(context.Background(), Credentials{
		Username: "ana",
		Email:    "ana@example.mx",
		Password: "hunter22",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.UserID)
	assert.NotEmpty(t, user.CartID)
	assert.NotEqual(t, "hunter22", user.Password, "password is stored hashed")
	assert.NotEmpty(t, issued.Access)
	assert.NotEmpty(t, issued.Refresh)

	stored := store.users[user.UserID]
	assert.Equal(t, identity.HashToken(issued.Refresh), stored.RefreshToken)
	assert.True(t, stored.RefreshExpiry.After(time.Now()))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()
	creds := Credentials{Username: "ana", Password: "hunter22"}

	_, _, err := svc.Register(ctx, creds)
	require.NoError(t, err)

	_, _, err = svc.Register(ctx, creds)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := newService(newMemStore())

	_, _, err := svc.Register(context.Background(), Credentials{Username: "ana"})
	assert.ErrorIs(t, err, ErrMissingField)

	_, _, err = svc.Register(context.Background(), Credentials{Password: "hunter22"})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestLoginVerifiesPassword(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	registered, _, err := svc.Register(ctx, Credentials{Username: "ana", Password: "hunter22"})
	require.NoError(t, err)

	user, issued, err := svc.Login(ctx, Credentials{Username: "ana", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, user.UserID)
	assert.NotEmpty(t, issued.Access)

	_, _, err = svc.Login(ctx, Credentials{Username: "ana", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, Credentials{Username: "nobody", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotatesTheToken(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	user, issued, err := svc.Register(ctx, Credentials{Username: "ana", Password: "hunter22"})
	require.NoError(t, err)

	_, renewed, err := svc.Refresh(ctx, issued.Refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed.Access)
	assert.Equal(t, identity.HashToken(renewed.Refresh), store.users[user.UserID].RefreshToken)

	// The old refresh token no longer matches the stored hash.
	_, _, err = svc.Refresh(ctx, issued.Refresh)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	_, issued, err := svc.Register(ctx, Credentials{Username: "ana", Password: "hunter22"})
	require.NoError(t, err)

	_, _, err = svc.Refresh(ctx, issued.Access)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	user, issued, err := svc.Register(ctx, Credentials{Username: "ana", Password: "hunter22"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, user.UserID))
	assert.Empty(t, store.users[user.UserID].RefreshToken)

	_, _, err = svc.Refresh(ctx, issued.Refresh)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.NoError(t, svc.Logout(ctx, "ghost"), "unknown user is already logged out")
}
