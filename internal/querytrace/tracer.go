// Package querytrace instruments the shared "execute query" capability
// with cost estimation and timing. Interception is request-scoped: the
// Tracer itself holds no per-request state, and all accounting lands on
// the RequestContext found in the call's context. The wrapped capability
// is an explicit value passed down the call chain, so the base Querier is
// never mutated and concurrent requests cannot observe each other's
// instrumentation.
package querytrace

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/jackc/pgx/v5"

	"loadlab/internal/logging"
	"loadlab/internal/metrics"
	"loadlab/internal/reqctx"
)

type Tracer struct {
	base      Querier
	logs      *logging.Dispatcher
	metrics   *metrics.Metrics
	mode      Mode
	planCache *ristretto.Cache
}

// New wraps base with instrumentation. When planCache is true, parsed
// plan costs are cached per query text so hot statements are not
// re-planned on every request.
func New(base Querier, logs *logging.Dispatcher, m *metrics.Metrics, mode Mode, planCache bool) (*Tracer, error) {
	t := &Tracer{
		base:    base,
		logs:    logs,
		metrics: m,
		mode:    mode,
	}
	if planCache {
		cache, err := newPlanCache()
		if err != nil {
			return nil, err
		}
		t.planCache = cache
	}
	return t, nil
}

// Query runs the cost-estimation call, then the real call, both through
// the original capability. The estimate strictly precedes the real call;
// the db-sink entry is emitted when the returned rows are closed, after
// the row count is known. Calls made outside a request window, or beyond
// the first query in ModeFirst, pass through uninstrumented.
func (t *Tracer) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rc, ok := reqctx.From(ctx)
	if !ok || !rc.BeginTrace(t.mode == ModeFirst) {
		return t.base.Query(ctx, sql, args...)
	}

	cost, err := t.estimateCost(ctx, sql, args...)
	if err != nil {
		t.fail(rc, sql, "cost estimation failed", err)
		return nil, err
	}

	start := time.Now()
	rows, err := t.base.Query(ctx, sql, args...)
	if err != nil {
		t.fail(rc, sql, "query execution failed", err)
		return nil, err
	}

	return &tracedRows{
		Rows:       rows,
		tracer:     t,
		rc:         rc,
		sql:        sql,
		paramCount: len(args),
		cost:       cost,
		start:      start,
	}, nil
}

func (t *Tracer) fail(rc *reqctx.RequestContext, sql, msg string, err error) {
	t.metrics.Increment(metrics.DBQueryErrorsTotal)
	t.logs.Emit(logging.SinkError, logging.LevelError, msg, map[string]any{
		"tag":        "QUERY_ERROR",
		"query":      sql,
		"error":      err.Error(),
		"request_id": rc.ID,
	})
}

// tracedRows counts consumed rows and emits the db-sink entry exactly
// once, when the consumer closes the rows.
type tracedRows struct {
	pgx.Rows
	tracer     *Tracer
	rc         *reqctx.RequestContext
	sql        string
	paramCount int
	cost       float64
	start      time.Time
	rowCount   int
	done       bool
}

func (r *tracedRows) Next() bool {
	ok := r.Rows.Next()
	if ok {
		r.rowCount++
	}
	return ok
}

func (r *tracedRows) Close() {
	r.Rows.Close()
	if r.done {
		return
	}
	r.done = true

	elapsedMs := time.Since(r.start).Milliseconds()

	if err := r.Rows.Err(); err != nil {
		r.tracer.fail(r.rc, r.sql, "query execution failed", err)
		return
	}

	r.tracer.metrics.Increment(metrics.DBQueriesTotal)
	r.tracer.metrics.Observe(metrics.DBQueryDuration, float64(elapsedMs))
	r.tracer.logs.Emit(logging.SinkDB, logging.LevelInfo, "query executed", map[string]any{
		"query":          r.sql,
		"query_time_ms":  elapsedMs,
		"estimated_cost": r.cost,
		"rows_returned":  r.rowCount,
		"param_count":    r.paramCount,
		"request_id":     r.rc.ID,
	})
	r.rc.RecordQuery(r.sql, reqctx.QueryStats{Cost: r.cost, TimeMs: elapsedMs})
}
