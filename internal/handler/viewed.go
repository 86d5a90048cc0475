package handler

import "net/http"

type viewedRequest struct {
	ProductID int `json:"productId"`
}

type viewedResponse struct {
	Error  bool   `json:"error"`
	Status string `json:"status"`
}

// TrackViewed records that the authenticated user viewed a product. The
// caller treats this as fire-and-forget; unknown product ids are accepted
// silently, matching the storefront's tolerance.
func (h *Handler) TrackViewed(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "token required")
		return
	}

	var req viewedRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProductID == 0 {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	h.viewed.Track(claims.UserID, req.ProductID)

	writeJSON(w, http.StatusOK, viewedResponse{Status: "ok"})
}
