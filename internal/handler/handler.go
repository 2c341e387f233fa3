package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"loadlab/internal/config"
	"loadlab/internal/domain"
	"loadlab/internal/generator"
	"loadlab/internal/logging"
	"loadlab/internal/metrics"
	"loadlab/internal/random"
	"loadlab/internal/reqctx"
)

// generatedOrderCount is how many synthetic orders one call to
// /api/orders/generate inserts.
const generatedOrderCount = 10

// computeIterations bounds the CPU-bound loop on /api/compute.
const computeIterations = 5_000_000

var errSyntheticFailure = errors.New("synthetic failure injected")

type Handler struct {
	users   UserStore
	orders  OrderStore
	logs    *logging.Dispatcher
	metrics *metrics.Metrics
	chaos   *config.ChaosConfig
	src     *random.Source
}

func New(
	users UserStore,
	orders OrderStore,
	logs *logging.Dispatcher,
	m *metrics.Metrics,
	chaos *config.ChaosConfig,
	src *random.Source,
) *Handler {
	return &Handler{
		users:   users,
		orders:  orders,
		logs:    logs,
		metrics: m,
		chaos:   chaos,
		src:     src,
	}
}

func (h *Handler) Register(e *echo.Echo, metricsHandler http.Handler) {
	api := e.Group("/api")
	api.GET("/users", h.Users)
	api.GET("/users/filter", h.FilterUsers)
	api.GET("/orders/generate", h.GenerateOrders)
	api.GET("/compute", h.Compute)
	e.GET("/metrics", echo.WrapHandler(metricsHandler))
}

func (h *Handler) Users(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return h.fail(c, "failed to fetch users", err, "")
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) FilterUsers(c echo.Context) error {
	raw := c.QueryParam("age")
	if raw == "" {
		return h.fail(c, "age parameter is required", errors.New("missing age parameter"), "")
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		return h.fail(c, "age parameter must be an integer", err, "")
	}

	users, err := h.users.FilterByAge(c.Request().Context(), age)
	if err != nil {
		return h.fail(c, "failed to filter users", err, "")
	}

	// Deliberate instability on the success path to exercise the error
	// logging pipeline, indistinguishable from a real failure at the API.
	if h.src.Float64() < h.chaos.FilterFailureRate {
		return h.fail(c, "failed to filter users", errSyntheticFailure, "")
	}

	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) GenerateOrders(c echo.Context) error {
	orders := generator.Orders(h.src, generatedOrderCount)

	inserted, err := h.orders.InsertBatch(c.Request().Context(), orders)
	if err != nil {
		return h.fail(c, "failed to generate orders", err, "")
	}
	return c.JSON(http.StatusOK, inserted)
}

func (h *Handler) Compute(c echo.Context) error {
	var result float64
	for i := 1; i <= computeIterations; i++ {
		result += math.Sqrt(float64(i))
	}

	if h.src.Float64() < h.chaos.ComputeFailureRate {
		return h.fail(c, "computation failed", errSyntheticFailure,
			"resource exhaustion during computation")
	}

	return c.JSON(http.StatusOK, domain.ComputeResponse{Result: result})
}

// fail converts any handler failure into the JSON 500 contract: error
// counter bumped, error-sink entry with timing-to-failure, and a
// {error, details} body. Nothing escapes a handler unhandled.
func (h *Handler) fail(c echo.Context, msg string, err error, details string) error {
	h.metrics.Increment(metrics.HTTPErrorsTotal)

	entry := map[string]any{
		"method": c.Request().Method,
		"path":   c.Path(),
		"error":  err.Error(),
	}
	if rc, ok := reqctx.From(c.Request().Context()); ok {
		entry["request_id"] = rc.ID
		entry["failed_after"] = time.Since(rc.Start).Milliseconds()
	}
	h.logs.Emit(logging.SinkError, logging.LevelError, msg, entry)

	return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
		Error:   msg,
		Details: details,
	})
}
