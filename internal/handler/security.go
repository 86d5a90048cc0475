package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmolner/tienda-moda/internal/domain/token"
)

// claimsKey is the context key for verified token claims.
type claimsKey struct{}

// ClaimsFromContext returns the verified claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.Claims)
	return c, ok
}

// Authenticate is the gate in front of every non-login endpoint. It reads
// the Authorization header, strips an optional "Bearer " prefix, verifies
// the token, and stores the claims in the request context. A missing header
// and a failed verification both answer 401; the response message is the
// only difference.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "token required")
			return
		}

		raw = strings.TrimPrefix(raw, "Bearer ")

		claims, err := h.tokens.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
