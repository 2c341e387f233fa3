package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"loadlab/internal/config"
	"loadlab/internal/domain"
	"loadlab/internal/logging"
)

// One statement per entry: pgx's extended protocol rejects multiple
// commands in a single Exec.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		age INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INT NOT NULL,
		product TEXT NOT NULL,
		price NUMERIC(10,2) NOT NULL
	)`,
}

func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// Pinger is the minimal surface the readiness gate needs; *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AwaitReady polls the backing store with a trivial liveness query, fixed
// delay between attempts, until it answers or the budget runs out.
// Exhaustion is logged and startup proceeds anyway: availability is
// favored over strict startup guarantees, so the error is reported, never
// returned.
func AwaitReady(ctx context.Context, db Pinger, cfg *config.ReadinessConfig, logs *logging.Dispatcher) {
	delay := time.Duration(cfg.DelayMs) * time.Millisecond

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		_, err := db.Exec(ctx, "SELECT 1")
		if err == nil {
			logs.Emit(logging.SinkApp, logging.LevelInfo, "backing store ready", map[string]any{
				"attempt": attempt,
			})
			return
		}

		logs.Emit(logging.SinkApp, logging.LevelInfo, "backing store not ready", map[string]any{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"error":        err.Error(),
		})

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}

	logs.Emit(logging.SinkApp, logging.LevelError, "backing store unavailable, starting anyway", map[string]any{
		"attempts": cfg.MaxAttempts,
	})
}

func EnsureSchema(ctx context.Context, db Pinger) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SeedUsers inserts the fixed synthetic user batch, idempotent across
// restarts via the unique email constraint.
func SeedUsers(ctx context.Context, db Pinger, users []domain.User) error {
	for _, u := range users {
		_, err := db.Exec(ctx,
			"INSERT INTO users (name, email, age) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING",
			u.Name, u.Email, u.Age,
		)
		if err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
	}
	return nil
}
