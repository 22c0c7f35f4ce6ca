package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// TradeService defines the methods that the trade handler requires from the
// service layer.
type TradeService interface {
	Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeRecord, error)
	History(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// TradeHandler serves trade execution and history endpoints.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given service and logger.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trades: trades,
		logger: logger,
	}
}

// tradeRequestBody is the JSON body accepted by PlaceTrade. Amount is a
// decimal string: native units for BUY, token units for SELL.
type tradeRequestBody struct {
	RequestID string `json:"request_id"`
	AgentID   string `json:"agent_id"`
	Side      string `json:"side"`
	TokenMint string `json:"token_mint"`
	Amount    string `json:"amount"`
}

type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
}

// PlaceTrade executes one swap and books it against the agent's position.
// POST /api/trades
func (h *TradeHandler) PlaceTrade(w http.ResponseWriter, r *http.Request) {
	var body tradeRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	if body.AgentID == "" || body.TokenMint == "" {
		writeError(w, http.StatusBadRequest, "agent_id and token_mint are required")
		return
	}
	side, ok := domain.ParseSide(body.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	rec, err := h.trades.Execute(r.Context(), domain.TradeRequest{
		RequestID: body.RequestID,
		AgentID:   body.AgentID,
		Side:      side,
		TokenMint: body.TokenMint,
		Amount:    amount,
	})
	if err != nil {
		if status := writeServiceError(w, err); status >= http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: trade failed",
				slog.String("agent_id", body.AgentID),
				slog.String("token_mint", body.TokenMint),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListTrades returns an agent's trade history, newest first.
// GET /api/agents/{agentID}/trades?limit=50&offset=0&since=...&until=...
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	agentID := pathParam(r, "agentID")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "missing agent id")
		return
	}

	trades, err := h.trades.History(r.Context(), agentID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("agent_id", agentID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.TradeRecord{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}
