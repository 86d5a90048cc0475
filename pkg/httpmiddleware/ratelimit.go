package httpmiddleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client sliding window limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the window length.
	Window time.Duration
	// KeyFunc derives the limiter key from a request. Nil means client IP
	// (X-Forwarded-For aware).
	KeyFunc func(*http.Request) string
}

// bucket counts requests in two adjacent fixed windows, identified by
// sequence number. The effective rate weighs the previous window by its
// remaining overlap with the sliding window, which smooths the boundary
// without keeping per-request timestamps.
type bucket struct {
	seq  int64
	curr float64
	prev float64
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIPKey
	}
	return &limiter{cfg: cfg, buckets: make(map[string]*bucket)}
}

// take consumes one request for key if the limit allows it. It reports the
// remaining budget and when the current window resets.
func (l *limiter) take(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	window := l.cfg.Window.Nanoseconds()
	seq := now.UnixNano() / window
	resetAt = time.Unix(0, (seq+1)*window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, found := l.buckets[key]
	if !found {
		b = &bucket{seq: seq}
		l.buckets[key] = b
	}
	switch {
	case b.seq == seq:
	case b.seq == seq-1:
		b.prev, b.curr, b.seq = b.curr, 0, seq
	default:
		// Idle long enough that both windows are stale.
		b.prev, b.curr, b.seq = 0, 0, seq
	}

	// Fraction of the previous window still inside the sliding window.
	overlap := 1 - float64(now.UnixNano()-seq*window)/float64(window)
	effective := b.prev*overlap + b.curr

	if effective >= float64(l.cfg.Max) {
		return 0, resetAt, false
	}
	b.curr++
	remaining = int(float64(l.cfg.Max) - effective - 1)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, resetAt, true
}

// sweep drops buckets idle for at least two windows.
func (l *limiter) sweep(now time.Time) {
	seq := now.UnixNano() / l.cfg.Window.Nanoseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if b.seq <= seq-2 {
			delete(l.buckets, key)
		}
	}
}

func (l *limiter) handler() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, resetAt, ok := l.take(l.cfg.KeyFunc(r), now)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !ok {
				retryAfter := math.Ceil(resetAt.Sub(now).Seconds())
				if retryAfter < 0 {
					retryAfter = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error":   true,
					"message": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit enforces a per-key sliding window limit, answering 429 with
// the API's error envelope when the budget is spent. Every response gets
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset headers.
// Stale buckets are not evicted; use RateLimitWithCleanup on servers with
// an unbounded client population.
func RateLimit(cfg RateLimitConfig) Middleware {
	return newLimiter(cfg).handler()
}

// RateLimitWithCleanup is RateLimit plus a background sweeper that evicts
// idle buckets every two windows until ctx is cancelled.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.sweep(now)
			}
		}
	}()
	return l.handler()
}

// clientIPKey prefers X-Forwarded-For (first hop), then X-Real-IP, then
// the connection's remote address.
func clientIPKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
