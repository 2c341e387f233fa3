package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"loadlab/internal/config"
	"loadlab/internal/random"
	"loadlab/internal/reqctx"
)

// Latency injects a uniform pseudo-random delay in [MinMs, MaxMs]
// milliseconds before handler dispatch, simulating variable network
// conditions. The sleep suspends only the current request's goroutine;
// concurrent requests are unaffected. The chosen value is stored on the
// RequestContext so the access log can report it as network_latency_ms.
// Metric scrapes on /metrics are exempt.
func Latency(cfg *config.LatencyConfig, src *random.Source) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled || c.Path() == "/metrics" {
				return next(c)
			}

			delayMs := src.IntBetween(cfg.MinMs, cfg.MaxMs)
			time.Sleep(time.Duration(delayMs) * time.Millisecond)

			if rc, ok := reqctx.From(c.Request().Context()); ok {
				rc.SetLatency(delayMs)
			}

			return next(c)
		}
	}
}
