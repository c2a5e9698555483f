package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Stripe retries failed deliveries with exponential backoff, so sustained
// traffic above this rate from one source is replay or abuse, not
// legitimate redelivery.
const (
	defaultWebhookLimit  = 120
	defaultWebhookWindow = time.Minute
)

// RateLimiter caps requests per source IP over a fixed window. A bucket per
// IP holds the window start and a counter; expired buckets are pruned as new
// windows open so one-off sources do not accumulate state.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	limit   int
	window  time.Duration

	now func() time.Time
}

type rateBucket struct {
	windowStart time.Time
	count       int
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = defaultWebhookLimit
	}
	if window <= 0 {
		window = defaultWebhookWindow
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow records a request from ip and reports whether it is within the
// limit. On refusal it also returns the seconds left in the current window,
// suitable for a Retry-After hint.
func (rl *RateLimiter) Allow(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[ip]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		rl.pruneLocked(now)
		rl.buckets[ip] = &rateBucket{windowStart: now, count: 1}
		return true, 0
	}

	if b.count >= rl.limit {
		remaining := rl.window - now.Sub(b.windowStart)
		retryAfter := int(remaining.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	b.count++
	return true, 0
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.windowStart) >= rl.window {
			delete(rl.buckets, ip)
		}
	}
}

// Middleware enforces the limit, answering refusals with 429 and a
// Retry-After hint so well-behaved callers back off.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := rl.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the source address, preferring the first hop recorded by
// a fronting proxy.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
