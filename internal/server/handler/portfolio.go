package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// PortfolioService defines the read-side position queries the portfolio
// handler needs.
type PortfolioService interface {
	Portfolio(ctx context.Context, agentID string) ([]domain.PositionView, error)
	Positions(ctx context.Context, filter domain.PositionFilter) ([]domain.PositionView, error)
}

// PortfolioHandler serves valued position endpoints.
type PortfolioHandler struct {
	portfolio PortfolioService
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(portfolio PortfolioService, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, logger: logger}
}

type positionsResponse struct {
	Positions []domain.PositionView `json:"positions"`
}

// GetPortfolio returns the agent's open positions with live valuation.
// GET /api/agents/{agentID}/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	agentID := pathParam(r, "agentID")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	views, err := h.portfolio.Portfolio(r.Context(), agentID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: portfolio failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load portfolio")
		return
	}
	h.write(w, views)
}

// ListPositions returns positions across agents.
// GET /api/positions?agent_id=...&open=true
func (h *PortfolioHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PositionFilter{AgentID: q.Get("agent_id")}
	if v := q.Get("open"); v != "" {
		open, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "open must be a boolean")
			return
		}
		filter.OpenOnly = open
	}

	views, err := h.portfolio.Positions(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	h.write(w, views)
}

func (h *PortfolioHandler) write(w http.ResponseWriter, views []domain.PositionView) {
	if views == nil {
		views = []domain.PositionView{}
	}
	writeJSON(w, http.StatusOK, positionsResponse{Positions: views})
}
