package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loadlab/internal/config"
	"loadlab/internal/logging"
	"loadlab/internal/metrics"
	"loadlab/internal/middleware"
)

func rateLimitConfig(rps float64, burst int, secret string) *config.RateLimitConfig {
	return &config.RateLimitConfig{
		Enabled:       true,
		RPS:           rps,
		Burst:         burst,
		ExpireMinutes: 3,
		BypassSecret:  secret,
	}
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("counter %s not found", name)
	return 0
}

func newRateLimited(t *testing.T, cfg *config.RateLimitConfig) (*echo.Echo, map[string]*bytes.Buffer, *metrics.Metrics) {
	t.Helper()
	logs, bufs := newTestSinks(t)
	m := metrics.New()

	e := echo.New()
	e.Use(middleware.RateLimit(cfg, logs, m))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e, bufs, m
}

func TestRateLimit_DenialCountedAndLogged(t *testing.T) {
	e, bufs, m := newRateLimited(t, rateLimitConfig(1, 1, ""))

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[1])
	assert.Equal(t, 1.0, counterValue(t, m, metrics.HTTPRateLimitedTotal))

	entries := sinkEntries(t, bufs[logging.SinkApp])
	require.Len(t, entries, 1)
	assert.Equal(t, "rate limit exceeded", entries[0].Message)
	assert.Equal(t, "192.168.1.1", entries[0].Metrics["client_ip"])
	assert.Equal(t, "/test", entries[0].Metrics["path"])
}

func TestRateLimit_DenialResponseBody(t *testing.T) {
	e, _, _ := newRateLimited(t, rateLimitConfig(1, 1, ""))

	var rec *httptest.ResponseRecorder
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.1:2000"
		rec = httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
	assert.Contains(t, rec.Body.String(), "retry_after")
}

func TestRateLimit_BypassHeaderSkipsLimiting(t *testing.T) {
	e, bufs, m := newRateLimited(t, rateLimitConfig(1, 1, "sesame"))

	for range 5 {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Rate-Limit-Bypass", "sesame")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Equal(t, 0.0, counterValue(t, m, metrics.HTTPRateLimitedTotal))
	assert.Empty(t, sinkEntries(t, bufs[logging.SinkApp]))
}

func TestRateLimit_WrongBypassSecretStillLimited(t *testing.T) {
	e, _, m := newRateLimited(t, rateLimitConfig(1, 1, "sesame"))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Rate-Limit-Bypass", "wrong")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	assert.Equal(t, 2.0, counterValue(t, m, metrics.HTTPRateLimitedTotal))
}

func TestRateLimit_IndependentClients(t *testing.T) {
	e, _, m := newRateLimited(t, rateLimitConfig(1, 1, ""))

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000", "10.0.0.3:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "first request from %s", addr)
	}

	assert.Equal(t, 0.0, counterValue(t, m, metrics.HTTPRateLimitedTotal))
}
