package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/identity"
	"tienda/models"
)

func noop(called *bool) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestWithIdentityAlwaysResolves(t *testing.T) {
	signer := identity.NewSigner([]byte("secret"))
	var id identity.Identity
	handler := WithIdentity(signer, func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		id, _ = identity.FromContext(r.Context())
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.True(t, id.Anonymous())
	assert.NotEmpty(t, id.CartID)
	assert.NotEmpty(t, w.Header().Get(identity.SessionHeader), "fresh session written onto the response")
}

func TestAuthenticateRejectsAnonymous(t *testing.T) {
	signer := identity.NewSigner([]byte("secret"))
	called := false
	handler := Authenticate(signer, noop(&called))

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, called)
}

func TestAuthenticateAcceptsValidToken(t *testing.T) {
	signer := identity.NewSigner([]byte("secret"))
	token, err := signer.AccessToken(models.User{UserID: "u1", CartID: "c1"})
	require.NoError(t, err)

	called := false
	handler := Authenticate(signer, noop(&called))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler(w, r, nil)

	assert.True(t, called)
}

func TestRequireSecret(t *testing.T) {
	called := false
	handler := RequireSecret("cron-secret", noop(&called))

	r := httptest.NewRequest(http.MethodPost, "/api/orders/expire", nil)
	w := httptest.NewRecorder()
	handler(w, r, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/api/orders/expire", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	handler(w, r, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, called)

	r = httptest.NewRequest(http.MethodPost, "/api/orders/expire", nil)
	r.Header.Set("Authorization", "Bearer cron-secret")
	w = httptest.NewRecorder()
	handler(w, r, nil)
	assert.True(t, called)
}
