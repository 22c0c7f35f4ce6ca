package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// PriceService resolves a token's current price. The bool is false when no
// price could be found.
type PriceService interface {
	GetPrice(ctx context.Context, tokenMint string) (domain.PriceQuote, bool)
}

// PriceHandler serves token price lookups.
type PriceHandler struct {
	prices PriceService
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler.
func NewPriceHandler(prices PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, logger: logger}
}

// GetPrice returns the cached or freshly fetched quote for a mint.
// GET /api/prices/{mint}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	mint := pathParam(r, "mint")
	if mint == "" {
		writeError(w, http.StatusBadRequest, "missing mint")
		return
	}

	quote, ok := h.prices.GetPrice(r.Context(), mint)
	if !ok {
		writeError(w, http.StatusNotFound, "price unavailable")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
