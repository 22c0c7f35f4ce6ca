// Package metrics holds the Prometheus collectors for the trade engine.
// Every method is safe on a nil *Metrics so components can run without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradecore"

// Metrics groups all collectors registered against one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	executions       *prometheus.CounterVec
	attempts         *prometheus.HistogramVec
	executionLatency *prometheus.HistogramVec
	priorityFee      *prometheus.HistogramVec
	priceLookups     *prometheus.CounterVec
	priceFetch       prometheus.Histogram
	positionChanges  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Trade requests by side and terminal outcome",
		}, []string{"side", "outcome"}),
		attempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "attempts",
			Help:      "Transactions submitted per trade request",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8},
		}, []string{"side"}),
		executionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_latency_ms",
			Help:      "Wall time from first quote to confirmation in milliseconds",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
		}, []string{"side"}),
		priorityFee: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "priority_fee_lamports",
			Help:      "Priority fee paid on the confirmed attempt",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 8),
		}, []string{"side"}),
		priceLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "lookups_total",
			Help:      "Price lookups by result (hit, miss, unavailable)",
		}, []string{"result"}),
		priceFetch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prices",
			Name:      "fetch_latency_ms",
			Help:      "Upstream price-discovery call latency in milliseconds",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		positionChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "mutations_total",
			Help:      "Position mutations by kind (open, increase, reduce, close)",
		}, []string{"kind"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route pattern and status code",
		}, []string{"route", "code"}),
	}
}

// Execution records the terminal outcome of one trade request.
func (m *Metrics) Execution(side, outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(side, outcome).Inc()
	m.attempts.WithLabelValues(side).Observe(float64(attempts))
	if outcome == "success" {
		m.executionLatency.WithLabelValues(side).Observe(float64(elapsed.Milliseconds()))
	}
}

// PriorityFee records the fee paid on a confirmed transaction.
func (m *Metrics) PriorityFee(side string, lamports uint64) {
	if m == nil {
		return
	}
	m.priorityFee.WithLabelValues(side).Observe(float64(lamports))
}

// PriceLookup counts a cache hit, miss or unavailable price.
func (m *Metrics) PriceLookup(result string) {
	if m == nil {
		return
	}
	m.priceLookups.WithLabelValues(result).Inc()
}

// PriceFetch records one upstream call.
func (m *Metrics) PriceFetch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.priceFetch.Observe(float64(elapsed.Milliseconds()))
}

// PositionChange counts a position mutation.
func (m *Metrics) PositionChange(kind string) {
	if m == nil {
		return
	}
	m.positionChanges.WithLabelValues(kind).Inc()
}

// HTTPRequest counts a served API request.
func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
