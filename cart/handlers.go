package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tienda/db"
	"tienda/identity"
	"tienda/inventory"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
)

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

// Handler exposes the cart aggregate over HTTP. Every route runs
// behind middleware.WithIdentity, so the resolved identity is always
// on the request context.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AddItem handles POST /api/cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		VariantID string `json:"variantId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	id, ok := identity.FromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unresolved identity")
		return
	}

	item, err := h.svc.AddItem(ctx, id, body.VariantID, body.Quantity)
	if err != nil {
		h.respondError(w, "AddItem", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/cart/:itemid.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	id, ok := identity.FromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unresolved identity")
		return
	}

	item, err := h.svc.UpdateItem(ctx, id, ps.ByName("itemid"), body.Quantity)
	if err != nil {
		h.respondError(w, "UpdateItem", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /api/cart/:itemid.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, ok := identity.FromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unresolved identity")
		return
	}

	if err := h.svc.RemoveItem(ctx, id, ps.ByName("itemid")); err != nil {
		h.respondError(w, "RemoveItem", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// List handles GET /api/cart.
func (h *Handler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, ok := identity.FromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unresolved identity")
		return
	}

	items, err := h.svc.List(ctx, id)
	if err != nil {
		h.respondError(w, "List", err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, items)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, inventory.ErrOutOfStock):
		utils.RespondWithError(w, http.StatusConflict, "Not enough stock available")
	case errors.Is(err, ErrInvalidQuantity):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case isNotFound(err):
		utils.RespondWithError(w, http.StatusNotFound, "Item not found")
	default:
		log.Printf("cart %s error: %v", op, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Cart operation failed")
	}
}
