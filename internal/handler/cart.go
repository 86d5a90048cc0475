package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/dmolner/tienda-moda/internal/domain/checkout"
)

type cartRequest struct {
	Cart []checkout.Line `json:"cart"`
}

type cartResponse struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Order   *checkout.Order `json:"order"`
}

// ValidateCart revalidates the client-submitted cart against the
// authoritative catalog and answers with the server-priced order, or with
// the full list of line errors.
func (h *Handler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		// Unreachable behind Authenticate; guards against a future
		// misregistered route.
		writeError(w, http.StatusUnauthorized, "token required")
		return
	}

	var req cartRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lg := zctx.From(r.Context())

	order, err := h.checkout.Validate(r.Context(), claims, req.Cart)
	if err != nil {
		var verrs checkout.ValidationErrors
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty or invalid")
		case errors.As(err, &verrs):
			lg.Info("cart rejected",
				zap.Int("user_id", claims.UserID),
				zap.Int("line_errors", len(verrs)),
			)
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   true,
				Message: "cart validation failed",
				Errors:  verrs.Messages(),
			})
		default:
			lg.Error("validate cart", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	lg.Info("order validated",
		zap.String("order_id", order.ID),
		zap.Int("user_id", claims.UserID),
		zap.String("total", order.Total.String()),
	)

	writeJSON(w, http.StatusOK, cartResponse{
		Message: "order completed",
		Order:   order,
	})
}
