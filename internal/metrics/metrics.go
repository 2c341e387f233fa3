// Package metrics wraps a dedicated prometheus registry behind the two
// operations the rest of the service needs: named counter increments and
// named duration timers. Series are registered up front; values are
// cumulative for the process lifetime, never reset on read.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPErrorsTotal       = "http_errors_total"
	HTTPRateLimitedTotal  = "http_rate_limited_total"
	HTTPRequestDuration   = "http_request_duration_ms"
	DBQueriesTotal        = "db_queries_total"
	DBQueryErrorsTotal    = "db_query_errors_total"
	DBQueryDuration       = "db_query_duration_ms"
	LogWriteFailuresTotal = "log_write_failures_total"
)

// DurationBuckets are the fixed histogram bounds, in milliseconds.
var DurationBuckets = []float64{10, 50, 100, 200, 500, 1000}

var counterHelp = map[string]string{
	HTTPRequestsTotal:     "Total number of HTTP requests handled.",
	HTTPErrorsTotal:       "Total number of HTTP requests that failed.",
	HTTPRateLimitedTotal:  "Total number of HTTP requests denied by the rate limiter.",
	DBQueriesTotal:        "Total number of database queries executed.",
	DBQueryErrorsTotal:    "Total number of database queries that failed.",
	LogWriteFailuresTotal: "Total number of log entries dropped by a failing sink.",
}

var histogramHelp = map[string]string{
	HTTPRequestDuration: "HTTP request duration in milliseconds.",
	DBQueryDuration:     "Database query duration in milliseconds.",
}

type Metrics struct {
	registry   *prometheus.Registry
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]prometheus.Counter, len(counterHelp)),
		histograms: make(map[string]prometheus.Histogram, len(histogramHelp)),
	}

	for name, help := range counterHelp {
		c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
		m.registry.MustRegister(c)
		m.counters[name] = c
	}
	for name, help := range histogramHelp {
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: DurationBuckets,
		})
		m.registry.MustRegister(h)
		m.histograms[name] = h
	}

	return m
}

// Increment atomically bumps the named counter. Unknown names are a
// no-op so callers never have to handle registration state.
func (m *Metrics) Increment(name string) {
	if c, ok := m.counters[name]; ok {
		c.Inc()
	}
}

// Observe records a millisecond value into the named histogram.
func (m *Metrics) Observe(name string, ms float64) {
	if h, ok := m.histograms[name]; ok {
		h.Observe(ms)
	}
}

// StartTimer begins a timer against the named histogram. The returned
// stop function records the elapsed time and returns it in milliseconds.
func (m *Metrics) StartTimer(name string) func() float64 {
	start := time.Now()
	return func() float64 {
		ms := float64(time.Since(start).Microseconds()) / 1000.0
		m.Observe(name, ms)
		return ms
	}
}

// Handler serves the text exposition of every registered series.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying prometheus registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
