// Package handler exposes the HTTP API: login, cart validation, and
// viewed-product tracking. Handlers delegate business decisions to the
// injected domain services and only translate between HTTP and the domain.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dmolner/tienda-moda/internal/domain/catalog"
	"github.com/dmolner/tienda-moda/internal/domain/checkout"
	"github.com/dmolner/tienda-moda/internal/domain/token"
	"github.com/dmolner/tienda-moda/internal/domain/user"
	"github.com/dmolner/tienda-moda/internal/domain/viewed"
)

// Handler implements the API endpoints with the required domain
// dependencies.
type Handler struct {
	users    *user.Store
	catalog  *catalog.Store
	tokens   *token.Service
	checkout *checkout.Service
	viewed   *viewed.Store
}

// New constructs a Handler.
func New(
	users *user.Store,
	cs *catalog.Store,
	tokens *token.Service,
	co *checkout.Service,
	vs *viewed.Store,
) *Handler {
	return &Handler{
		users:    users,
		catalog:  cs,
		tokens:   tokens,
		checkout: co,
		viewed:   vs,
	}
}

// Register mounts all API routes on mux. The auth gate wraps everything
// except login.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.Login)
	mux.Handle("POST /api/cart", h.Authenticate(http.HandlerFunc(h.ValidateCart)))
	mux.Handle("POST /api/cart/validate", h.Authenticate(http.HandlerFunc(h.ValidateCart)))
	mux.Handle("POST /api/viewed-products", h.Authenticate(http.HandlerFunc(h.TrackViewed)))
}

// errorResponse is the envelope for every failed request.
type errorResponse struct {
	Error   bool     `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode failure here means the
	// client went away.
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}

// decodeBody decodes a JSON request body into dst, answering 400 on failure.
// It reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		zctx.From(r.Context()).Debug("bad request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
