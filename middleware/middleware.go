package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"tienda/identity"

	"github.com/julienschmidt/httprouter"
)

// WithIdentity resolves the caller to a cart id before the handler
// runs. Any credential minted during resolution is written onto the
// response immediately so it is never dropped.
func WithIdentity(signer *identity.Signer, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, issued := signer.Resolve(r)
		identity.Write(w, issued)
		next(w, r.WithContext(identity.WithContext(r.Context(), id)), ps)
	}
}

// Authenticate requires an authenticated user on top of WithIdentity.
func Authenticate(signer *identity.Signer, next httprouter.Handle) httprouter.Handle {
	return WithIdentity(signer, func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := identity.FromContext(r.Context())
		if !ok || id.Anonymous() {
			http.Error(w, "Missing or invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r, ps)
	})
}

// RequireSecret guards scheduler-facing endpoints with a shared
// bearer secret.
func RequireSecret(secret string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r, ps)
	}
}
