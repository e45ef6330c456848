package middleware

import (
	"net/http"
	"sync"
	"time"

	"interview-assistant-service/metrics"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// RateLimiter is an in-memory rolling-window limiter keyed by client
type RateLimiter struct {
	requests map[string][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewRateLimiter creates a limiter admitting limit requests per key in any window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it fits in the window
func (rl *RateLimiter) Allow(key string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	// Timestamps are appended in order, so expired ones form a prefix
	requests := rl.requests[key]
	expired := 0
	for expired < len(requests) && !requests[expired].After(cutoff) {
		expired++
	}
	requests = requests[expired:]

	if len(requests) >= rl.limit {
		rl.requests[key] = requests
		return false
	}

	rl.requests[key] = append(requests, now)
	return true
}

// Sweep drops keys with no request inside the window
func (rl *RateLimiter) Sweep() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, requests := range rl.requests {
		if len(requests) == 0 || !requests[len(requests)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

// RateLimitMiddleware rejects clients that exceed limit requests per window
// with a plain-text 429. A non-positive limit disables limiting.
func RateLimitMiddleware(limiter *RateLimiter, message string) gin.HandlerFunc {
	if limiter == nil || limiter.limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			metrics.RateLimitedTotal.Inc()
			log.WithFields(log.Fields{
				"client_ip":  clientIP,
				"request_id": GetRequestID(c),
				"path":       c.Request.URL.Path,
			}).Warn("rate_limit.exceeded")
			c.String(http.StatusTooManyRequests, message)
			c.Abort()
			return
		}

		c.Next()
	}
}
