package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rejection = "Too many requests, please try again later."

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newLimitedRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), RateLimitMiddleware(limiter, rejection))
	router.POST("/interview", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func send(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/interview", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit_300thAllowed301stRejected(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(300, 15*time.Minute)
	limiter.now = clock.Now
	router := newLimitedRouter(limiter)

	for i := 1; i <= 300; i++ {
		w := send(router, "10.0.0.1:1234")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		clock.t = clock.t.Add(time.Second)
	}

	w := send(router, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, rejection, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Empty(t, w.Header().Get("Retry-After"))

	// Other clients have their own budget.
	assert.Equal(t, http.StatusOK, send(router, "10.0.0.2:1234").Code)
}

func TestRateLimit_WindowRolls(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(2, 15*time.Minute)
	limiter.now = clock.Now

	assert.True(t, limiter.Allow("a"))
	clock.t = clock.t.Add(10 * time.Minute)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))

	// The first request leaves the window, the second is still inside it.
	clock.t = clock.t.Add(5*time.Minute + time.Second)
	assert.True(t, limiter.Allow("a"))
	assert.False(t, limiter.Allow("a"))
}

func TestRateLimit_Disabled(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(0, time.Minute))
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, send(router, "10.0.0.1:1234").Code)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(5, time.Minute)
	limiter.now = clock.Now

	limiter.Allow("old")
	clock.t = clock.t.Add(2 * time.Minute)
	limiter.Allow("fresh")
	limiter.Sweep()

	assert.NotContains(t, limiter.requests, "old")
	assert.Contains(t, limiter.requests, "fresh")
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORS_AllowsAnyOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(), AccessLog())
	router.POST("/feedback", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/feedback", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}
