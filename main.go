package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/netutil"

	"loadlab/internal/config"
	"loadlab/internal/generator"
	"loadlab/internal/handler"
	"loadlab/internal/logging"
	"loadlab/internal/metrics"
	custommiddleware "loadlab/internal/middleware"
	"loadlab/internal/querytrace"
	"loadlab/internal/random"
	"loadlab/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(ctx, logger); err != nil {
		logger.Error("application failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m := metrics.New()
	logs := logging.NewFileDispatcher(&cfg.Logging, logger, func() {
		m.Increment(metrics.LogWriteFailuresTotal)
	})

	pool, err := repository.NewPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	defer pool.Close()

	repository.AwaitReady(ctx, pool, &cfg.Readiness, logs)

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		logs.Emit(logging.SinkApp, logging.LevelError, "schema bootstrap failed", map[string]any{
			"error": err.Error(),
		})
	} else if err := repository.SeedUsers(ctx, pool, generator.Users()); err != nil {
		logs.Emit(logging.SinkApp, logging.LevelError, "user seeding failed", map[string]any{
			"error": err.Error(),
		})
	}

	src := random.NewSource(cfg.Chaos.Seed)

	tracer, err := querytrace.New(pool, logs, m,
		querytrace.ParseMode(cfg.QueryTrace.Mode), cfg.QueryTrace.PlanCache)
	if err != nil {
		return fmt.Errorf("failed to create query tracer: %w", err)
	}

	users := repository.NewUserRepository(tracer)
	orders := repository.NewOrderRepository(tracer)
	h := handler.New(users, orders, logs, m, &cfg.Chaos, src)

	ids, err := custommiddleware.NewRequestIDs()
	if err != nil {
		return fmt.Errorf("failed to create request id generator: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RateLimit.Enabled {
		e.Use(custommiddleware.RateLimit(&cfg.RateLimit, logs, m))
	}
	e.Use(custommiddleware.Instrument(logs, m, ids))
	e.Use(custommiddleware.Latency(&cfg.Latency, src))

	h.Register(e, m.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	if cfg.Server.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConnections)
	}

	server := &http.Server{
		Handler:        e,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 14, // 16KB
	}

	logs.Emit(logging.SinkApp, logging.LevelInfo, "server starting", map[string]any{
		"addr":             addr,
		"latency_min_ms":   cfg.Latency.MinMs,
		"latency_max_ms":   cfg.Latency.MaxMs,
		"query_trace_mode": cfg.QueryTrace.Mode,
	})

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	logs.Emit(logging.SinkApp, logging.LevelInfo, "server shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
