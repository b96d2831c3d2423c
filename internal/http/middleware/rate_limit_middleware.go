package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/talos-registry/talos-server/internal/http/response"
	"github.com/talos-registry/talos-server/internal/observability"
)

type rateLimitDecision struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	resetAt    time.Time
}

type windowState struct {
	hits []time.Time
}

// RateLimiter is a per-client fixed-window limiter kept in process memory.
// Limits are advisory back-pressure on the auth endpoints, not a distributed
// quota, so local state per instance is acceptable.
type RateLimiter struct {
	mu      sync.Mutex
	store   map[string]*windowState
	cleanup time.Time

	limit   int
	window  time.Duration
	scope   string
	keyFunc func(r *http.Request) string
}

func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		store:   make(map[string]*windowState),
		cleanup: time.Now().Add(window),
		limit:   limit,
		window:  window,
		scope:   scope,
		keyFunc: clientIP,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := rl.allow(rl.keyFunc(r))
			writeRateLimitHeaders(w.Header(), rl.limit, decision)
			if !decision.allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				w.Header().Set("Retry-After", retryAfterHeader(decision.retryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(key string) rateLimitDecision {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, state := range rl.store {
			if len(state.hits) == 0 || now.Sub(state.hits[len(state.hits)-1]) > 2*rl.window {
				delete(rl.store, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}

	state, ok := rl.store[key]
	if !ok {
		state = &windowState{}
		rl.store[key] = state
	}

	cutoff := now.Add(-rl.window)
	pruned := state.hits[:0]
	for _, hit := range state.hits {
		if hit.After(cutoff) {
			pruned = append(pruned, hit)
		}
	}
	state.hits = pruned

	if len(state.hits) >= rl.limit {
		retryAfter := state.hits[0].Add(rl.window).Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return rateLimitDecision{
			allowed:    false,
			remaining:  0,
			retryAfter: retryAfter,
			resetAt:    now.Add(retryAfter),
		}
	}

	state.hits = append(state.hits, now)
	return rateLimitDecision{
		allowed:   true,
		remaining: rl.limit - len(state.hits),
		resetAt:   state.hits[0].Add(rl.window),
	}
}

func writeRateLimitHeaders(h http.Header, limit int, decision rateLimitDecision) {
	h.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	h.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.remaining))
	resetAt := decision.resetAt
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
}

func retryAfterHeader(d time.Duration) string {
	seconds := int(d.Round(time.Second).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
