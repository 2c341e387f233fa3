package middleware

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sqids/sqids-go"

	"loadlab/internal/logging"
	"loadlab/internal/metrics"
	"loadlab/internal/reqctx"
)

// RequestIDs generates short, unique identifiers that correlate the
// access, db, and error entries of one request across sinks.
type RequestIDs struct {
	sqid    *sqids.Sqids
	counter atomic.Uint64
}

func NewRequestIDs() (*RequestIDs, error) {
	s, err := sqids.New(sqids.Options{MinLength: 8})
	if err != nil {
		return nil, err
	}
	return &RequestIDs{sqid: s}, nil
}

func (g *RequestIDs) Next() string {
	id, err := g.sqid.Encode([]uint64{g.counter.Add(1)})
	if err != nil {
		return "unknown"
	}
	return id
}

// Instrument creates the RequestContext for each inbound request and,
// once the response finalizes, emits exactly one access-sink entry with
// the aggregated request metrics and updates the registry. Handler errors
// that escape to echo are additionally counted and sent to the error
// sink; nothing is suppressed.
func Instrument(logs *logging.Dispatcher, m *metrics.Metrics, ids *RequestIDs) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rc := reqctx.New(ids.Next())
			c.SetRequest(c.Request().WithContext(reqctx.With(c.Request().Context(), rc)))

			stop := m.StartTimer(metrics.HTTPRequestDuration)
			err := next(c)
			elapsedMs := stop()

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			heapMB := float64(memStats.HeapAlloc) / 1024 / 1024

			m.Increment(metrics.HTTPRequestsTotal)
			if err != nil {
				m.Increment(metrics.HTTPErrorsTotal)
				logs.Emit(logging.SinkError, logging.LevelError, "request failed", map[string]any{
					"request_id":    rc.ID,
					"method":        c.Request().Method,
					"path":          c.Path(),
					"error":         err.Error(),
					"failed_after":  time.Since(rc.Start).Milliseconds(),
					"heap_alloc_mb": heapMB,
				})
			}

			logs.Emit(logging.SinkAccess, logging.LevelInfo, "request completed", map[string]any{
				"request_id":         rc.ID,
				"method":             c.Request().Method,
				"path":               c.Path(),
				"status":             status,
				"response_time_ms":   elapsedMs,
				"network_latency_ms": rc.Latency(),
				"size_bytes":         c.Response().Size,
				"query_count":        rc.TracedQueries(),
				"heap_alloc_mb":      heapMB,
			})

			return err
		}
	}
}
