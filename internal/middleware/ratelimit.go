package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ashureev/hr-resource-chat/internal/identity"
	"github.com/ashureev/hr-resource-chat/internal/metrics"
)

const visitorIdleExpiry = 10 * time.Minute

// RateLimiter keeps one token bucket per visitor. The key is the visitor ID
// only, not visitor:session, so rotating tab session IDs does not bypass it.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	endpoint string
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. endpoint labels the rate limit metric.
func NewRateLimiter(rps float64, burst int, endpoint string) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*limiterEntry),
		limit:    rate.Limit(rps),
		burst:    burst,
		endpoint: endpoint,
		now:      time.Now,
	}
}

// Allow reports whether key may make a request now.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.visitors[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Cleanup drops visitors idle for longer than the expiry window.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-visitorIdleExpiry)
	removed := 0
	for key, e := range rl.visitors {
		if e.lastSeen.Before(cutoff) {
			delete(rl.visitors, key)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every minute until done is closed.
func (rl *RateLimiter) StartCleanup(done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-done:
				return
			}
		}
	}()
}

// Middleware rejects requests over the limit with 429. Requests are keyed by
// visitor ID, falling back to the client IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := identity.VisitorIDFromContext(r.Context())
		if key == "" {
			key = identity.IPFromRequest(r)
		}

		if !rl.Allow(key) {
			metrics.RateLimitHits.WithLabelValues(rl.endpoint).Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
