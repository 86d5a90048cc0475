package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dmolner/tienda-moda/internal/domain/catalog"
	"github.com/dmolner/tienda-moda/internal/domain/token"
	"github.com/dmolner/tienda-moda/internal/domain/user"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginUser is the public slice of the user record: no username echo, never
// the password.
type loginUser struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type loginResponse struct {
	Error          bool             `json:"error"`
	Message        string           `json:"message"`
	Token          string           `json:"token"`
	User           loginUser        `json:"user"`
	Catalog        catalog.Snapshot `json:"catalog"`
	ViewedProducts []int            `json:"viewedProducts"`
}

// Login authenticates the credentials and answers with a fresh token, the
// user's identity, the full catalog snapshot (the front end caches it
// client-side), and the user's viewed-product history.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	lg := zctx.From(r.Context())

	u, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrBadCredentials) {
			lg.Info("login rejected", zap.String("username", req.Username))
			writeError(w, http.StatusUnauthorized, "incorrect credentials")
			return
		}
		lg.Error("authenticate", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tok, err := h.tokens.Issue(token.Identity{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	})
	if err != nil {
		lg.Error("issue token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	lg.Info("login ok", zap.Int("user_id", u.ID))

	writeJSON(w, http.StatusOK, loginResponse{
		Message:        "welcome",
		Token:          tok,
		User:           loginUser{ID: u.ID, Name: u.DisplayName},
		Catalog:        h.catalog.Snapshot(),
		ViewedProducts: h.viewed.Recent(u.ID),
	})
}
