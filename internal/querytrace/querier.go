package querytrace

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Querier is the single logical "execute query" capability. It is
// satisfied by *pgxpool.Pool and by test fakes.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Mode selects how many queries per request are measured.
type Mode int8

const (
	// ModeFirst reproduces the reference behavior: only the first query
	// issued during a request is instrumented.
	ModeFirst Mode = iota
	// ModeAll instruments every query of a request.
	ModeAll
)

func ParseMode(s string) Mode {
	if s == "all" {
		return ModeAll
	}
	return ModeFirst
}
