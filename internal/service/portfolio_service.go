package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// PortfolioService assembles read views of positions with live prices and
// ladder progress attached.
type PortfolioService struct {
	positions *PositionService
	prices    *PriceService
	logger    *slog.Logger
}

// NewPortfolioService creates a PortfolioService.
func NewPortfolioService(positions *PositionService, prices *PriceService, logger *slog.Logger) *PortfolioService {
	return &PortfolioService{
		positions: positions,
		prices:    prices,
		logger:    logger.With(slog.String("component", "portfolio")),
	}
}

// Portfolio returns the agent's open positions with valuation. Positions
// whose price is unknown are returned with nil valuation fields.
func (s *PortfolioService) Portfolio(ctx context.Context, agentID string) ([]domain.PositionView, error) {
	open, err := s.positions.ListPositions(ctx, domain.PositionFilter{AgentID: agentID, OpenOnly: true})
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: %w", err)
	}
	return s.views(ctx, open), nil
}

// Positions returns positions matching filter with valuation attached to
// the open ones.
func (s *PortfolioService) Positions(ctx context.Context, filter domain.PositionFilter) ([]domain.PositionView, error) {
	positions, err := s.positions.ListPositions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: %w", err)
	}
	return s.views(ctx, positions), nil
}

// RefreshOpen values every open position across all agents and ratchets
// their milestones. It returns how many positions were priced.
func (s *PortfolioService) RefreshOpen(ctx context.Context) (int, error) {
	open, err := s.positions.ListPositions(ctx, domain.PositionFilter{OpenOnly: true})
	if err != nil {
		return 0, fmt.Errorf("portfolio_service: refresh: %w", err)
	}
	priced := 0
	for _, v := range s.views(ctx, open) {
		if v.Price != nil {
			priced++
		}
	}
	return priced, nil
}

func (s *PortfolioService) views(ctx context.Context, positions []domain.Position) []domain.PositionView {
	mints := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			mints = append(mints, p.TokenMint)
		}
	}
	quotes := s.prices.GetPrices(ctx, mints)

	out := make([]domain.PositionView, 0, len(positions))
	for _, p := range positions {
		view := domain.PositionView{Position: p}
		q, ok := quotes[p.TokenMint]
		if !p.IsOpen() || !ok {
			out = append(out, view)
			continue
		}

		val := s.positions.ValuePosition(p, q)
		ms, err := s.positions.ObserveMilestones(ctx, p, q)
		if err != nil {
			s.logger.WarnContext(ctx, "observe milestones failed",
				slog.String("position_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
		view.Position.TargetsHit = ms.TargetsHit
		view.Price = &q
		view.Valuation = &val
		view.Milestone = &ms
		out = append(out, view)
	}
	return out
}
