package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/metrics"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/server/handler"
)

type stubTrades struct{}

func (stubTrades) Execute(context.Context, domain.TradeRequest) (domain.TradeRecord, error) {
	return domain.TradeRecord{}, domain.ErrUnknownAgent
}

func (stubTrades) History(context.Context, string, domain.ListOpts) ([]domain.TradeRecord, error) {
	return nil, nil
}

type stubPortfolio struct{}

func (stubPortfolio) Portfolio(context.Context, string) ([]domain.PositionView, error) { return nil, nil }

func (stubPortfolio) Positions(context.Context, domain.PositionFilter) ([]domain.PositionView, error) {
	return nil, nil
}

type stubPrices struct{}

func (stubPrices) GetPrice(context.Context, string) (domain.PriceQuote, bool) {
	return domain.PriceQuote{}, false
}

func newTestHandler(apiKey string) (http.Handler, *metrics.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	h := NewHandler(Config{APIKey: apiKey}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Trades:    handler.NewTradeHandler(stubTrades{}, logger),
		Portfolio: handler.NewPortfolioHandler(stubPortfolio{}, logger),
		Prices:    handler.NewPriceHandler(stubPrices{}, logger),
		Archive:   handler.NewArchiveHandler(nil, logger),
		Metrics:   m.Handler(),
	}, m, logger)
	return h, m
}

func TestRoutes(t *testing.T) {
	h, _ := newTestHandler("k")

	tests := []struct {
		method, path, body string
		key                string
		want               int
	}{
		{http.MethodGet, "/api/health", "", "", http.StatusOK},
		{http.MethodGet, "/api/positions", "", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/positions", "", "k", http.StatusOK},
		{http.MethodGet, "/api/agents/a/portfolio", "", "k", http.StatusOK},
		{http.MethodGet, "/api/agents/a/trades", "", "k", http.StatusOK},
		{http.MethodGet, "/api/prices/M", "", "k", http.StatusNotFound},
		{http.MethodPost, "/api/trades", `{"agent_id":"ghost","side":"buy","token_mint":"M","amount":"1"}`, "k", http.StatusNotFound},
		{http.MethodPost, "/api/archive", `{"agent_id":"a"}`, "k", http.StatusServiceUnavailable},
		{http.MethodDelete, "/api/trades", "", "k", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	h, _ := newTestHandler("")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/prices/M", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="GET /api/prices/{mint}"`) {
		t.Fatalf("metrics output missing price route:\n%s", rec.Body)
	}
}
