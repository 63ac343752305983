package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"tienda/identity"
	"tienda/utils"
)

// Handler adapts the auth service to HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, issued, err := h.service.Register(r.Context(), creds)
	if err != nil {
		respondError(w, err)
		return
	}
	identity.Write(w, &issued)
	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"user":  user,
		"token": issued.Access,
	})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, issued, err := h.service.Login(r.Context(), creds)
	if err != nil {
		respondError(w, err)
		return
	}
	identity.Write(w, &issued)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"user":  user,
		"token": issued.Access,
	})
}

// Refresh handles POST /api/auth/refresh using the refresh cookie.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	cookie, err := r.Cookie(identity.RefreshCookie)
	if err != nil || cookie.Value == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	_, issued, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		respondError(w, err)
		return
	}
	identity.Write(w, &issued)
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"token": issued.Access})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	id, ok := identity.FromContext(r.Context())
	if ok && !id.Anonymous() {
		if err := h.service.Logout(r.Context(), id.UserID); err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     identity.RefreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMissingField):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUsernameTaken):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		utils.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
