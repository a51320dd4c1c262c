package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-client fixed-window limiter for single-instance
// deployments. Use RedisRateLimiter when running more than one replica.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*clientWindow
}

type clientWindow struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: map[string]*clientWindow{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(clientKey(r)) {
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cw := rl.windows[key]
	if cw == nil || now.After(cw.resetAt) {
		rl.windows[key] = &clientWindow{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	if cw.count >= rl.limit {
		return false
	}
	cw.count++
	return true
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
