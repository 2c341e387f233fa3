package middleware

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"loadlab/internal/config"
	"loadlab/internal/logging"
	"loadlab/internal/metrics"
)

const bypassHeader = "X-Rate-Limit-Bypass"

var (
	rateLimitExceededResp = map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": 1,
	}
	rateLimiterInternalErr = map[string]string{
		"error": "internal server error",
	}
)

// RateLimit throttles per client IP. Denials are counted in the registry
// and emitted to the app sink; they are deliberate throttling, not
// request failures, so they stay out of the error counter.
func RateLimit(cfg *config.RateLimitConfig, logs *logging.Dispatcher, m *metrics.Metrics) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RPS),
			Burst:     cfg.Burst,
			ExpiresIn: time.Duration(cfg.ExpireMinutes) * time.Minute,
		},
	)

	secret := []byte(cfg.BypassSecret)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		Skipper: func(c echo.Context) bool {
			if cfg.BypassSecret == "" {
				return false
			}
			provided := c.Request().Header.Get(bypassHeader)
			return subtle.ConstantTimeCompare([]byte(provided), secret) == 1
		},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			m.Increment(metrics.HTTPRateLimitedTotal)
			logs.Emit(logging.SinkApp, logging.LevelInfo, "rate limit exceeded", map[string]any{
				"client_ip": identifier,
				"method":    c.Request().Method,
				"path":      c.Path(),
			})
			c.Response().Header().Set("Retry-After", "1")
			return c.JSON(http.StatusTooManyRequests, rateLimitExceededResp)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			logs.Emit(logging.SinkError, logging.LevelError, "rate limiter error", map[string]any{
				"client_ip": c.RealIP(),
				"path":      c.Path(),
				"error":     err.Error(),
			})
			return c.JSON(http.StatusInternalServerError, rateLimiterInternalErr)
		},
	})
}
