package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Execution("BUY", "success", 2, 1500*time.Millisecond)
	m.Execution("BUY", "success", 1, 800*time.Millisecond)
	m.Execution("SELL", "confirmation_timeout", 3, 0)
	m.PriceLookup("hit")
	m.PositionChange("open")

	if got := testutil.ToFloat64(m.executions.WithLabelValues("BUY", "success")); got != 2 {
		t.Fatalf("executions{BUY,success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.executions.WithLabelValues("SELL", "confirmation_timeout")); got != 1 {
		t.Fatalf("executions{SELL,confirmation_timeout} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.priceLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("price lookups{hit} = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Execution("BUY", "success", 1, time.Second)
	m.PriorityFee("BUY", 1000)
	m.PriceLookup("miss")
	m.PriceFetch(time.Millisecond)
	m.PositionChange("close")
	m.HTTPRequest("GET /api/health", "200")
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.PositionChange("open")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tradecore_positions_mutations_total") {
		t.Fatalf("exposition missing positions counter:\n%s", rec.Body.String())
	}
}
