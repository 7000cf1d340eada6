package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newLimitedEcho(cfg RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/predict", ok)
	e.GET("/health", ok)
	return e
}

func hit(e *echo.Echo, path, ip string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitPerClient(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{RPS: 0.001, Burst: 2})

	assert.Equal(t, http.StatusOK, hit(e, "/predict", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit(e, "/predict", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "/predict", "10.0.0.1"))

	assert.Equal(t, http.StatusOK, hit(e, "/predict", "10.0.0.2"), "budgets are per client")
}

func TestRateLimitSkipper(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{
		RPS:     0.001,
		Burst:   1,
		Skipper: func(c echo.Context) bool { return c.Path() == "/health" },
	})
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "/health", "10.0.0.1"))
	}
}

func TestRateLimitDisabled(t *testing.T) {
	e := newLimitedEcho(RateLimitConfig{})
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "/predict", "10.0.0.1"))
	}
}

func TestLimiterSetEvictsIdleClients(t *testing.T) {
	s := newLimiterSet(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(limiterIdleTTL + 2*time.Minute)
	s.get("b")

	assert.Len(t, s.clients, 1)
	assert.Contains(t, s.clients, "b")
}
