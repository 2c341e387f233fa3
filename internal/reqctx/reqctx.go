// Package reqctx carries per-request instrumentation state on the
// request's context.Context. Each RequestContext is owned by exactly one
// in-flight request and discarded when its response finalizes; nothing in
// it is shared across requests.
package reqctx

import (
	"context"
	"sync"
	"time"
)

type ctxKey struct{}

// QueryStats is the cost/time record kept per query text.
type QueryStats struct {
	Cost   float64 `json:"cost"`
	TimeMs int64   `json:"time"`
}

type RequestContext struct {
	ID    string
	Start time.Time

	mu              sync.Mutex
	latencyMs       int
	queryComplexity map[string]QueryStats
	traced          int
}

func New(id string) *RequestContext {
	return &RequestContext{
		ID:              id,
		Start:           time.Now(),
		queryComplexity: make(map[string]QueryStats),
	}
}

func With(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

func From(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return rc, ok
}

func (rc *RequestContext) SetLatency(ms int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.latencyMs = ms
}

func (rc *RequestContext) Latency() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.latencyMs
}

// RecordQuery stores stats keyed by query text. Last write wins when the
// same text executes twice in one request; parameter values do not
// participate in the key.
func (rc *RequestContext) RecordQuery(text string, stats QueryStats) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.queryComplexity[text] = stats
}

// Queries returns a copy of the per-query stats map.
func (rc *RequestContext) Queries() map[string]QueryStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]QueryStats, len(rc.queryComplexity))
	for k, v := range rc.queryComplexity {
		out[k] = v
	}
	return out
}

// BeginTrace claims one traced-query slot. When firstOnly is set, only
// the first claim per request succeeds; later queries run uninstrumented.
func (rc *RequestContext) BeginTrace(firstOnly bool) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if firstOnly && rc.traced > 0 {
		return false
	}
	rc.traced++
	return true
}

// TracedQueries reports how many queries were measured so far.
func (rc *RequestContext) TracedQueries() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.traced
}
