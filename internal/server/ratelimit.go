// ratelimit.go - Per-client token-bucket limiter for the /api routes.
//
// Complements any limit enforced by a reverse proxy; state is per process.
package server

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps one token bucket per client IP and forgets clients that
// have been idle for idleTTL.
type rateLimiter struct {
	mu           sync.Mutex
	visitors     map[string]*visitor
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
	lastCleanup  time.Time
	metrics      *Metrics
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter allows rps requests per second per client with the given burst.
// Example: newRateLimiter(10, 20, m) allows bursts of 20, refilled at 10/s.
func newRateLimiter(rps float64, burst int, m *Metrics) *rateLimiter {
	return &rateLimiter{
		visitors:     make(map[string]*visitor),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		lastCleanup:  time.Now(),
		metrics:      m,
	}
}

// middleware returns an HTTP middleware that enforces rate limits
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rl.limiter(clientIP(r)).Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			if rl.metrics != nil {
				rl.metrics.RecordRateLimited()
			}
			retry := int(math.Ceil(delay.Seconds()))
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiter returns the bucket for key, creating it on first use. Idle
// entries are swept here rather than from a background goroutine.
func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) >= rl.cleanupEvery {
		cutoff := now.Add(-rl.idleTTL)
		for k, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, k)
			}
		}
		rl.lastCleanup = now
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{lim: lim, lastSeen: now}
	return lim
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}
