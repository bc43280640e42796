package authapi

import (
	"net/http"
)

// Authenticate guards a route group with access-token authentication.
//
// The token is read from the access cookie first, then from the
// Authorization header. Validation is signature-and-expiry only; the user
// row is then loaded so downstream handlers get a live projection rather
// than token claims. A missing token is rejected before any lookup.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := tokenFromCookie(r, h.cfg.AccessCookieName)
		if !ok {
			tok, ok = tokenFromBearer(r)
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := h.sessions.Validate(tok, h.now())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		user, err := h.users.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			// The token outlived the account.
			writeError(w, http.StatusUnauthorized, "invalid or expired access token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
