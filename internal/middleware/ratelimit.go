package middleware

import (
	"net/http" // HTTP status codes
	"sync"     // Guards the limiter map
	"time"     // Idle eviction

	"github.com/gin-gonic/gin" // Gin web framework
	"golang.org/x/time/rate"   // Token bucket limiter
)

// RateLimiter hands out one token bucket per authenticated user
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters map[string]*userLimiter
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perSecond requests per user with the given burst
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: map[string]*userLimiter{},
	}
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, ul := range rl.limiters {
		if now.Sub(ul.lastSeen) > rl.idle {
			delete(rl.limiters, k) // Forget idle users
		}
	}
	ul, ok := rl.limiters[key]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = ul
	}
	ul.lastSeen = now
	return ul.limiter.AllowN(now, 1)
}

// Middleware limits requests per userID, falling back to the client IP
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			// Too many requests for this user
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded, slow down"})
			return
		}
		c.Next()
	}
}
