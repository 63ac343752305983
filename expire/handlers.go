package expire

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"tienda/utils"
)

// Handler exposes the sweep as an endpoint for external schedulers.
type Handler struct {
	reconciler *Reconciler
}

func NewHandler(reconciler *Reconciler) *Handler {
	return &Handler{reconciler: reconciler}
}

// Sweep handles POST /api/orders/expire.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	expired, err := h.reconciler.Run(ctx)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"expired": expired})
}
