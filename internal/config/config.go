package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Latency    LatencyConfig
	Chaos      ChaosConfig
	Readiness  ReadinessConfig
	QueryTrace QueryTraceConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host           string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port           int    `env:"SERVER_PORT" envDefault:"8080"`
	MaxConnections int    `env:"SERVER_MAX_CONNECTIONS" envDefault:"0"`
}

type DatabaseConfig struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	DBName   string `env:"POSTGRES_DB" envDefault:"loadlab"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxConns int    `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

type LoggingConfig struct {
	Dir          string `env:"LOG_DIR" envDefault:"logs"`
	ConsoleLevel string `env:"LOG_CONSOLE_LEVEL" envDefault:"info"`
	MaxSizeMB    int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups   int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

type LatencyConfig struct {
	Enabled bool `env:"LATENCY_ENABLED" envDefault:"true"`
	MinMs   int  `env:"LATENCY_MIN_MS" envDefault:"10"`
	MaxMs   int  `env:"LATENCY_MAX_MS" envDefault:"100"`
}

type ChaosConfig struct {
	FilterFailureRate  float64 `env:"CHAOS_FILTER_FAILURE_RATE" envDefault:"0.3"`
	ComputeFailureRate float64 `env:"CHAOS_COMPUTE_FAILURE_RATE" envDefault:"0.8"`
	Seed               uint64  `env:"CHAOS_SEED" envDefault:"0"`
}

type ReadinessConfig struct {
	MaxAttempts int `env:"DB_READY_MAX_ATTEMPTS" envDefault:"5"`
	DelayMs     int `env:"DB_READY_DELAY_MS" envDefault:"2000"`
}

// QueryTraceConfig selects how many queries per request receive cost
// accounting: "first" matches the reference system (only the first query
// issued during a request is measured), "all" measures every query.
// PlanCache is an opt-in optimization; when off, every traced query is
// preceded by its own estimation sub-call.
type QueryTraceConfig struct {
	Mode      string `env:"QUERY_TRACE_MODE" envDefault:"first"`
	PlanCache bool   `env:"QUERY_TRACE_PLAN_CACHE" envDefault:"false"`
}

type RateLimitConfig struct {
	Enabled       bool    `env:"RATE_LIMIT_ENABLED" envDefault:"false"`
	RPS           float64 `env:"RATE_LIMIT_RPS" envDefault:"100"`
	Burst         int     `env:"RATE_LIMIT_BURST" envDefault:"200"`
	ExpireMinutes int     `env:"RATE_LIMIT_EXPIRE_MINUTES" envDefault:"3"`
	BypassSecret  string  `env:"RATE_LIMIT_BYPASS_SECRET" envDefault:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.MaxConns,
	)
}
