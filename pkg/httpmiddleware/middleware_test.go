package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, addr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (bool, string) {
	t.Helper()

	var resp struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error, resp.Message
}

func TestRateLimit_UnderAndOverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i := 0; i < 3; i++ {
		w := hit(h, "10.0.0.1:1234", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
	}

	w := hit(h, "10.0.0.1:1234", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	isErr, msg := decodeEnvelope(t, w)
	assert.True(t, isErr)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_KeysAreIsolated(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:5678", nil).Code)

	// A different client IP has its own budget.
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1234", nil).Code)
}

func TestRateLimit_ForwardedForWins(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

	fwd := map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", fwd).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.2:1234", fwd).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("Authorization")
		},
	})(okHandler())

	alice := map[string]string{"Authorization": "Bearer alice"}
	bob := map[string]string{"Authorization": "Bearer bob"}
	require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", alice).Code)
	require.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1234", alice).Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", bob).Code)
}

func TestRateLimit_WindowRollover(t *testing.T) {
	l := newLimiter(RateLimitConfig{Max: 1, Window: time.Minute})
	now := time.Unix(1_750_000_020, 0)

	_, _, ok := l.take("k", now)
	require.True(t, ok)
	_, _, ok = l.take("k", now)
	require.False(t, ok)

	// Two full windows later both counters are stale and the budget resets.
	_, _, ok = l.take("k", now.Add(2*time.Minute))
	assert.True(t, ok)
}

func TestRecovery_PanicBecomesEnvelope(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := hit(h, "10.0.0.1:1234", nil)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	isErr, msg := decodeEnvelope(t, w)
	assert.True(t, isErr)
	assert.Equal(t, "internal server error", msg)
}

func TestRecovery_PassesThrough(t *testing.T) {
	h := Recovery()(okHandler())
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234", nil).Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		kept   bool
	}{
		{name: "generated when absent", header: "", kept: false},
		{name: "client id kept", header: "trace-12345", kept: true},
		{name: "control bytes replaced", header: "bad\nid", kept: false},
		{name: "oversized replaced", header: strings.Repeat("a", 129), kept: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := map[string]string{}
			if tt.header != "" {
				hdr[requestIDHeader] = tt.header
			}
			w := hit(h, "10.0.0.1:1234", hdr)

			id := w.Header().Get(requestIDHeader)
			require.NotEmpty(t, id)
			assert.Equal(t, id, seen, "context and header must agree")
			if tt.kept {
				assert.Equal(t, tt.header, id)
			} else if tt.header != "" {
				assert.NotEqual(t, tt.header, id)
			}
		})
	}
}
