package utils

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// NewCartID mints a cart identifier.
func NewCartID() string {
	return "c" + uuid.NewString()
}

// NewItemID mints a line item identifier.
func NewItemID() string {
	return "li" + uuid.NewString()
}

// NewUserID mints a user identifier.
func NewUserID() string {
	return "u" + uuid.NewString()
}

// NewPurchaseID mints a purchase record identifier.
func NewPurchaseID() string {
	return "p" + uuid.NewString()
}

// RespondWithJSON sends a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithError sends a JSON error payload.
func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

type M map[string]any
