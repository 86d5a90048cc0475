package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmolner/tienda-moda/internal/domain/catalog"
	"github.com/dmolner/tienda-moda/internal/domain/checkout"
	"github.com/dmolner/tienda-moda/internal/domain/token"
	"github.com/dmolner/tienda-moda/internal/domain/user"
	"github.com/dmolner/tienda-moda/internal/domain/viewed"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	users := user.NewStore([]user.User{
		{ID: 1, Username: "maria", Password: "maria123", DisplayName: "María García"},
	})
	cs := catalog.NewStore(
		[]catalog.Category{{ID: 1, Name: "Camisetas"}},
		[]catalog.Product{
			{ID: 7, Name: "Camiseta Básica", Price: decimal.RequireFromString("19.99"), Stock: 3, CategoryID: 1, Featured: true},
		},
	)
	tokens := token.NewService([]byte("test-secret"), time.Hour)

	h := New(users, cs, tokens, checkout.NewService(cs), viewed.NewStore(0))

	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, mux *http.ServeMux) string {
	t.Helper()

	w := doJSON(t, mux, http.MethodPost, "/api/login", `{"username":"maria","password":"maria123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLogin_OK(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/login", `{"username":"maria","password":"maria123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, false, resp["error"])
	assert.NotEmpty(t, resp["token"])

	u := resp["user"].(map[string]any)
	assert.Equal(t, float64(1), u["id"])
	assert.Equal(t, "María García", u["name"])
	assert.NotContains(t, u, "password")

	cat := resp["catalog"].(map[string]any)
	assert.Len(t, cat["products"], 1)
	assert.Len(t, cat["categories"], 1)
	assert.Len(t, cat["featured"], 1)
}

func TestLogin_BadCredentials(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/login", `{"username":"maria","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_MissingFields(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: `{}`},
		{name: "no password", body: `{"username":"maria"}`},
		{name: "no username", body: `{"password":"maria123"}`},
		{name: "not json", body: `garbage`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, http.MethodPost, "/api/login", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCart_RequiresAuth(t *testing.T) {
	mux := newTestMux(t)

	// No Authorization header.
	w := doJSON(t, mux, http.MethodPost, "/api/cart", `{"cart":[]}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = doJSON(t, mux, http.MethodPost, "/api/cart", `{"cart":[]}`, "not.a.token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCart_ExpiredToken(t *testing.T) {
	mux := newTestMux(t)

	// Issue with a shifted clock, far enough back for the 1h TTL to have
	// elapsed. Same secret, so only the expiry can fail verification.
	issuer := token.NewService([]byte("test-secret"), time.Hour)
	issuer.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expiredTok, err := issuer.Issue(token.Identity{UserID: 1, Username: "maria", DisplayName: "María García"})
	require.NoError(t, err)

	w := doJSON(t, mux, http.MethodPost, "/api/cart", `{"cart":[{"id":7,"price":19.99,"quantity":1}]}`, expiredTok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCart_ValidOrder(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/cart",
		`{"cart":[{"id":"7-Rojo-M","name":"Camiseta Básica (Rojo, M)","price":19.99,"quantity":3}]}`, tok)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Error bool `json:"error"`
		Order struct {
			ID       string `json:"id"`
			Customer string `json:"customer"`
			Total    string `json:"total"`
			Products []struct {
				ID       int    `json:"id"`
				Name     string `json:"name"`
				Subtotal string `json:"subtotal"`
			} `json:"products"`
		} `json:"order"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.False(t, resp.Error)
	assert.True(t, strings.HasPrefix(resp.Order.ID, "ORD-"))
	assert.Equal(t, "María García", resp.Order.Customer)
	assert.Equal(t, "59.97", resp.Order.Total)
	require.Len(t, resp.Order.Products, 1)
	assert.Equal(t, 7, resp.Order.Products[0].ID)
	assert.Equal(t, "Camiseta Básica (Rojo, M)", resp.Order.Products[0].Name)
	assert.Equal(t, "59.97", resp.Order.Products[0].Subtotal)
}

func TestCart_ValidateAlias(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/cart/validate",
		`{"cart":[{"id":7,"price":19.99,"quantity":1}]}`, tok)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCart_ValidationErrors(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/cart",
		`{"cart":[
			{"id":7,"price":15.00,"quantity":1},
			{"id":999,"price":1.00,"quantity":1}
		]}`, tok)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Error)
	assert.Len(t, resp.Errors, 2)
	assert.Contains(t, resp.Errors[0], "price mismatch")
	assert.Contains(t, resp.Errors[1], "does not exist")
}

func TestCart_EmptyCart(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/cart", `{"cart":[]}`, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestViewed_TrackAndLoginHistory(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/viewed-products", `{"productId":7}`, tok)
	require.Equal(t, http.StatusOK, w.Code)

	var resp viewedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)

	// The history rides along with the next login.
	w = doJSON(t, mux, http.MethodPost, "/api/login", `{"username":"maria","password":"maria123"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		ViewedProducts []int `json:"viewedProducts"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&loginResp))
	assert.Equal(t, []int{7}, loginResp.ViewedProducts)
}

func TestViewed_RequiresAuth(t *testing.T) {
	mux := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/viewed-products", `{"productId":7}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestViewed_MissingProductID(t *testing.T) {
	mux := newTestMux(t)
	tok := login(t, mux)

	w := doJSON(t, mux, http.MethodPost, "/api/viewed-products", `{}`, tok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
