package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ──────────────────────────────────────────────────────────────────────────────
// Per-IP rate limiting on golang.org/x/time/rate
// ──────────────────────────────────────────────────────────────────────────────

// ipLimiter tracks one token-bucket limiter per client IP together with the
// time it was last used, so stale entries can be evicted.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds per-IP limiters and the shared lock.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst < 1 {
		burst = 1
	}
	return &limiterPool{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the limiter for the given IP, creating it on first sight.
func (p *limiterPool) get(ip string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(p.rps, p.burst)}
		p.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// evictStale drops limiters not used since the cutoff.
func (p *limiterPool) evictStale(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ip, entry := range p.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(p.limiters, ip)
		}
	}
}

// RateLimitMiddleware returns a gin.HandlerFunc that enforces a per-IP token
// bucket of rps requests per second with the given burst capacity.  Clients
// exceeding the limit receive 429 Too Many Requests.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	pool := newLimiterPool(rps, burst)

	// Background goroutine to evict stale limiters every 5 minutes to prevent
	// the map from growing without bound.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			pool.evictStale(time.Now().Add(-10 * time.Minute))
		}
	}()

	return func(c *gin.Context) {
		if !pool.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
