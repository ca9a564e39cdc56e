package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.Use(mw...)
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return e
}

func get(e http.Handler, remote string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{Max: 5, Window: time.Minute}))

	for i := range 5 {
		w := get(e, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{Max: 2, Window: time.Minute}))

	for range 2 {
		require.Equal(t, http.StatusOK, get(e, "10.0.0.1:9999", nil).Code)
	}

	w := get(e, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_DifferentClients(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{Max: 1, Window: time.Minute}))

	assert.Equal(t, http.StatusOK, get(e, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, get(e, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Key:    func(c *gin.Context) string { return c.GetHeader("X-User") },
	}))

	assert.Equal(t, http.StatusOK, get(e, "10.0.0.1:1", map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "10.0.0.2:1", map[string]string{"X-User": "a"}).Code)
	assert.Equal(t, http.StatusOK, get(e, "10.0.0.1:1", map[string]string{"X-User": "b"}).Code)
}

func TestRateLimit_XForwardedFor(t *testing.T) {
	e := newEngine(RateLimit(RateLimitConfig{Max: 1, Window: time.Minute}))
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, get(e, "192.168.1.1:4444", xff).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "192.168.1.2:5555", xff).Code)
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := NewLimiter(4, time.Minute)
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for range 4 {
		require.True(t, l.Allow("k", start).Allowed)
	}
	assert.False(t, l.Allow("k", start.Add(30*time.Second)).Allowed)

	// Halfway into the next window the previous four count as two.
	d := l.Allow("k", start.Add(90*time.Second))
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.True(t, l.Allow("k", start.Add(90*time.Second)).Allowed)
	assert.False(t, l.Allow("k", start.Add(90*time.Second)).Allowed)

	// Two full windows later everything is forgotten.
	d = l.Allow("k", start.Add(5*time.Minute))
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	l.Allow("a", now)
	l.Allow("b", now.Add(90*time.Second))
	l.Sweep(now.Add(150 * time.Second))

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.counters, "a")
	assert.Contains(t, l.counters, "b")
}

func TestRequestID(t *testing.T) {
	var seen string
	e := gin.New()
	e.Use(RequestID())
	e.GET("/", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := get(e, "10.0.0.1:1", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "abc-123", seen)

	w = get(e, "10.0.0.1:1", map[string]string{RequestIDHeader: "bad\x01id"})
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	assert.Equal(t, w.Header().Get(RequestIDHeader), seen)
}
