package httpmiddleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(c *gin.Context) string

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the maximum number of requests allowed per window.
	Max int
	// Window is the duration of each sliding window.
	Window time.Duration
	// Key extracts the limiter key. The client IP is used when nil.
	Key KeyFunc
}

// counter tracks request counts across two adjacent windows.
type counter struct {
	prev      float64
	prevStart time.Time
	curr      float64
	currStart time.Time
}

// Limiter is a sliding window request limiter keyed by an arbitrary string.
// It is safe for concurrent use.
type Limiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*counter
}

// NewLimiter creates a Limiter allowing limit requests per window and key.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		max:      limit,
		window:   window,
		counters: make(map[string]*counter),
	}
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow records a request for key at now and reports whether it fits the
// limit. Rejected requests are not counted.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{currStart: now}
		l.counters[key] = c
	}

	if now.Sub(c.currStart) >= l.window {
		c.prev, c.prevStart = c.curr, c.currStart
		c.curr, c.currStart = 0, now.Truncate(l.window)
		if now.Sub(c.prevStart) >= 2*l.window {
			c.prev = 0
		}
	}

	// The previous window counts in proportion to its overlap with the
	// sliding window ending at now.
	overlap := 1 - now.Sub(c.currStart).Seconds()/l.window.Seconds()
	overlap = math.Max(overlap, 0)
	used := c.prev*overlap + c.curr
	reset := c.currStart.Add(l.window)

	if used >= float64(l.max) {
		return Decision{ResetAt: reset}
	}
	c.curr++
	return Decision{
		Allowed:   true,
		Remaining: max(int(float64(l.max)-used-1), 0),
		ResetAt:   reset,
	}
}

// Sweep drops counters whose windows have fully expired.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.counters {
		if now.Sub(c.currStart) >= 2*l.window {
			delete(l.counters, key)
		}
	}
}

// Run sweeps expired counters every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// RateLimit returns a gin middleware enforcing a per-key sliding window
// limit. Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Rejected requests get 429 with a JSON error body and a
// Retry-After header.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return RateLimitWith(NewLimiter(cfg.Max, cfg.Window), cfg.Key)
}

// RateLimitWith is like RateLimit but uses an existing Limiter, so several
// routes can share one budget and the caller can run its sweeper.
func RateLimitWith(l *Limiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = func(c *gin.Context) string { return c.ClientIP() }
	}
	limit := strconv.Itoa(l.max)
	return func(c *gin.Context) {
		d := l.Allow(key(c), time.Now())

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retry := max(time.Until(d.ResetAt), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
