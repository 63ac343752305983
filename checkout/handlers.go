package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tienda/db"
	"tienda/identity"
	"tienda/utils"

	"github.com/julienschmidt/httprouter"
)

// Handler exposes checkout and confirmation over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	id, ok := identity.FromContext(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unresolved identity")
		return
	}

	outcome, issued, err := h.svc.Checkout(ctx, id, req)
	if err != nil {
		h.respondError(w, "Checkout", err)
		return
	}
	identity.Write(w, issued)

	switch o := outcome.(type) {
	case Redirect:
		utils.RespondWithJSON(w, http.StatusOK, o)
	case Immediate:
		utils.RespondWithJSON(w, http.StatusOK, o)
	case Pending:
		utils.RespondWithJSON(w, http.StatusOK, o)
	default:
		log.Printf("checkout: unhandled outcome %T", o)
		utils.RespondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}

// Confirm handles POST /api/checkout/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		Payment string `json:"payment"`
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

	newCartID, issued, err := h.svc.Confirm(ctx, id, body.Payment)
	if err != nil {
		h.respondError(w, "Confirm", err)
		return
	}
	identity.Write(w, issued)
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"cartId": newCartID})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownMethod), errors.Is(err, ErrUnknownPayment),
		errors.Is(err, ErrEmptyCart), errors.Is(err, ErrAddressRequired):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAddressNotFound), errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, ErrGateway):
		log.Printf("checkout %s gateway error: %v", op, err)
		utils.RespondWithError(w, http.StatusBadGateway, "Payment gateway rejected the request")
	default:
		log.Printf("checkout %s error: %v", op, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}
