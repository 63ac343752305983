package receipts

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tienda/db"
	"tienda/utils"
)

// Handler serves receipt documents over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PickupQR handles GET /api/orders/:orderid/qr.
func (h *Handler) PickupQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	png, err := h.service.PickupQR(r.Context(), ps.ByName("orderid"))
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// PaymentSlip handles GET /api/orders/:orderid/slip.
func (h *Handler) PaymentSlip(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	orderID := ps.ByName("orderid")
	pdf, err := h.service.PaymentSlip(r.Context(), orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=pago-"+orderID+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, ErrNoPickup), errors.Is(err, ErrNoSlip):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
