// Package middleware contains the Gin middleware of the replica's HTTP API.
//
// This file implements a lightweight, in-memory, token-bucket rate limiter
// with per-client buckets and opportunistic garbage collection.
//
// Features:
//   - Per-key token buckets using golang.org/x/time/rate
//   - Pluggable identity function (client IP by default)
//   - Best-effort cleanup of idle buckets to bound memory
//   - Exact-path exemptions for health probes and metric scrapes
//
// Notes:
//   - This limiter is process-local. Several replicas behind a load balancer
//     each enforce their own budget.
//   - A rate of zero allows each client its burst and nothing more; denied
//     requests then get Retry-After: 1.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket a request draws from.
type KeyFunc func(*gin.Context) string

// KeyByIP keys buckets by client IP.
func KeyByIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. Safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  KeyFunc
	exempt map[string]struct{}

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1). A nil keyFn keys by client IP.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		exempt:   map[string]struct{}{},
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// Exempt excludes exact request paths (health probes, metric scrapes)
// from limiting. It returns rl for chaining and must be called before the
// handler serves traffic.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// getVisitor returns the limiter for key. Eviction runs before the lookup
// so a stale bucket is dropped even when it is the one requested.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter is the whole number of seconds until lim has a token again,
// at least 1.
func retryAfter(lim *rate.Limiter) int {
	// A zero rate never refills.
	if lim.Limit() == 0 {
		return 1
	}
	r := lim.Reserve()
	defer r.Cancel()
	if !r.OK() || r.Delay() == rate.InfDuration {
		return 1
	}
	secs := int(math.Ceil(r.Delay().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Handler returns the Gin middleware enforcing the limit.
//
// Behavior:
//   - Exempt paths pass through without drawing a token.
//   - Allowed requests continue down the chain.
//   - Denied requests are aborted with 429, a Retry-After header in whole
//     seconds (at least 1) and the standard error envelope:
//     { "request_id": "...", "code": "too_many_requests", "message": "rate limit exceeded" }
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(HeaderRequestID),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
