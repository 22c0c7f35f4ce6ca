package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// RiskConfig holds the tunable parameters for pre-trade risk checks. Zero
// values disable the corresponding check.
type RiskConfig struct {
	MaxBuyNative     decimal.Decimal
	MaxOpenPositions int
}

// RiskService provides pre-trade risk checks so BUY orders stay within the
// configured limits before anything is submitted.
type RiskService struct {
	positions domain.PositionStore
	cfg       RiskConfig
	logger    *slog.Logger
}

// NewRiskService creates a RiskService.
func NewRiskService(positions domain.PositionStore, cfg RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{
		positions: positions,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "risk")),
	}
}

// PreTradeCheck returns an error wrapping domain.ErrRiskRejected when req
// breaks a limit. SELLs only reduce exposure and always pass.
//
// Checks performed:
//  1. BUY notional per trade
//  2. Open positions per agent, when the BUY would open a new one
func (s *RiskService) PreTradeCheck(ctx context.Context, req domain.TradeRequest) error {
	if req.Side != domain.SideBuy {
		return nil
	}

	if s.cfg.MaxBuyNative.IsPositive() && req.Amount.GreaterThan(s.cfg.MaxBuyNative) {
		s.logger.WarnContext(ctx, "trade amount exceeds limit",
			slog.String("agent_id", req.AgentID),
			slog.String("amount", req.Amount.String()),
			slog.String("max", s.cfg.MaxBuyNative.String()),
		)
		return fmt.Errorf("risk_service: buy %s exceeds max %s: %w", req.Amount, s.cfg.MaxBuyNative, domain.ErrRiskRejected)
	}

	if s.cfg.MaxOpenPositions <= 0 {
		return nil
	}
	_, err := s.positions.GetOpen(ctx, req.AgentID, req.TokenMint)
	if err == nil {
		return nil // adds to an existing position
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("risk_service: get open position: %w", err)
	}

	open, err := s.positions.List(ctx, domain.PositionFilter{AgentID: req.AgentID, OpenOnly: true})
	if err != nil {
		return fmt.Errorf("risk_service: list open positions: %w", err)
	}
	if len(open) >= s.cfg.MaxOpenPositions {
		s.logger.WarnContext(ctx, "max positions reached",
			slog.String("agent_id", req.AgentID),
			slog.Int("open", len(open)),
			slog.Int("max", s.cfg.MaxOpenPositions),
		)
		return fmt.Errorf("risk_service: max positions reached (%d/%d): %w", len(open), s.cfg.MaxOpenPositions, domain.ErrRiskRejected)
	}
	return nil
}
