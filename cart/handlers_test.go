package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/identity"
	"tienda/middleware"
	"tienda/models"
)

func newTestRouter(svc *Service, signer *identity.Signer) *httprouter.Router {
	h := NewHandler(svc)
	router := httprouter.New()
	router.GET("/api/cart", middleware.WithIdentity(signer, h.List))
	router.POST("/api/cart", middleware.WithIdentity(signer, h.AddItem))
	router.PUT("/api/cart/:itemid", middleware.WithIdentity(signer, h.UpdateItem))
	router.DELETE("/api/cart/:itemid", middleware.WithIdentity(signer, h.RemoveItem))
	return router
}

func newHTTPFixture(t *testing.T, available int) (*httprouter.Router, *memCartStore, *memLedger) {
	t.Helper()
	store := newMemCartStore()
	store.addProduct(testProduct())
	ledger := newMemLedger(map[string]int{"v1": available})
	svc := NewService(store, ledger, 7*24*time.Hour)
	signer := identity.NewSigner([]byte("test-secret"))
	return newTestRouter(svc, signer), store, ledger
}

func TestAddItemMintsSessionForNewShopper(t *testing.T) {
	router, store, _ := newHTTPFixture(t, 10)

	req := httptest.NewRequest(http.MethodPost, "/api/cart",
		strings.NewReader(`{"variantId":"v1","quantity":2}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	credential := w.Header().Get(identity.SessionHeader)
	require.NotEmpty(t, credential, "first request gets a session credential")
	session, err := identity.DecodeSession(credential)
	require.NoError(t, err)

	var item models.LineItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, session.CartID, item.CartID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 2, store.reservations[session.CartID+"/v1"])
}

func TestSessionHeaderReusesCart(t *testing.T) {
	router, _, _ := newHTTPFixture(t, 10)

	first := httptest.NewRequest(http.MethodPost, "/api/cart",
		strings.NewReader(`{"variantId":"v1","quantity":1}`))
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, first)
	require.Equal(t, http.StatusCreated, w1.Code)
	credential := w1.Header().Get(identity.SessionHeader)

	second := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	second.Header.Set(identity.SessionHeader, credential)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, second)

	require.Equal(t, http.StatusOK, w2.Code)
	assert.Empty(t, w2.Header().Get(identity.SessionHeader), "echoed session is not reissued")

	var items []models.LineItem
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAddItemOutOfStockIsConflict(t *testing.T) {
	router, _, _ := newHTTPFixture(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/api/cart",
		strings.NewReader(`{"variantId":"v1","quantity":5}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddItemRejectsBadPayload(t *testing.T) {
	router, _, _ := newHTTPFixture(t, 10)

	for _, body := range []string{`{`, `{"quantity":2}`, ``} {
		req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, "payload %q", body)
	}
}

func TestUpdateMissingItemIsNotFound(t *testing.T) {
	router, _, _ := newHTTPFixture(t, 10)

	req := httptest.NewRequest(http.MethodPut, "/api/cart/li-nope",
		strings.NewReader(`{"quantity":3}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRemoveItemRoundTrip(t *testing.T) {
	router, store, ledger := newHTTPFixture(t, 10)

	add := httptest.NewRequest(http.MethodPost, "/api/cart",
		strings.NewReader(`{"variantId":"v1","quantity":3}`))
	w1 := httptest.NewRecorder()
	router.ServeHTTP(w1, add)
	require.Equal(t, http.StatusCreated, w1.Code)
	credential := w1.Header().Get(identity.SessionHeader)

	var item models.LineItem
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &item))

	del := httptest.NewRequest(http.MethodDelete, "/api/cart/"+item.ItemID, nil)
	del.Header.Set(identity.SessionHeader, credential)
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, del)

	require.Equal(t, http.StatusOK, w2.Code)
	assert.Empty(t, store.items)
	assert.Equal(t, 10, ledger.available["v1"])
}
