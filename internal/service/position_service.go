package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/metrics"
	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/milestone"
)

var hundred = decimal.NewFromInt(100)

// PositionService owns per-(agent, token) positions. Every mutation of a
// pair runs under its key lock, so a BUY and a SELL for the same pair are
// applied one after the other; distinct pairs proceed in parallel.
type PositionService struct {
	positions domain.PositionStore
	locks     domain.KeyLocker
	ladder    milestone.Ladder
	events    *Events
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewPositionService creates a PositionService.
func NewPositionService(
	positions domain.PositionStore,
	locks domain.KeyLocker,
	ladder milestone.Ladder,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		positions: positions,
		locks:     locks,
		ladder:    ladder,
		logger:    logger.With(slog.String("component", "positions")),
		now:       time.Now,
	}
}

// SetEvents attaches the lifecycle event fan-out.
func (s *PositionService) SetEvents(e *Events) { s.events = e }

// SetMetrics attaches Prometheus collectors.
func (s *PositionService) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Ladder returns the take-profit ladder positions are tracked against.
func (s *PositionService) Ladder() milestone.Ladder { return s.ladder }

func positionLockKey(agentID, tokenMint string) string {
	return "pos:" + domain.PositionKey(agentID, tokenMint)
}

// RecordBuy opens a position for the pair or adds the fill to the open one.
func (s *PositionService) RecordBuy(ctx context.Context, agentID, tokenMint string, res domain.ExecutionResult) (domain.Position, error) {
	if !res.TokenAmount.IsPositive() || !res.NativeAmount.IsPositive() {
		return domain.Position{}, fmt.Errorf("position_service: buy %s/%s native %s: %w",
			res.TokenAmount, tokenMint, res.NativeAmount, domain.ErrInvalidQuantity)
	}

	unlock, err := s.locks.Lock(ctx, positionLockKey(agentID, tokenMint))
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: lock %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}
	defer unlock()

	now := s.now().UTC()
	pos, err := s.positions.GetOpen(ctx, agentID, tokenMint)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		opened := res.ExecutedAt
		if opened.IsZero() {
			opened = now
		}
		pos = domain.Position{
			ID:                uuid.NewString(),
			AgentID:           agentID,
			TokenMint:         tokenMint,
			Quantity:          res.TokenAmount,
			EntryValueNative:  res.NativeAmount,
			EntryPrice:        res.NativeAmount.Div(res.TokenAmount),
			RealizedPnLNative: decimal.Zero,
			TargetsHit:        []int{},
			OpenedAt:          opened,
			UpdatedAt:         now,
		}
		if err := s.positions.Create(ctx, pos); err != nil {
			return domain.Position{}, fmt.Errorf("position_service: create position: %w", err)
		}
		s.metrics.PositionChange("open")
		return pos, nil

	case err != nil:
		return domain.Position{}, fmt.Errorf("position_service: get open %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}

	pos.Quantity = pos.Quantity.Add(res.TokenAmount)
	pos.EntryValueNative = pos.EntryValueNative.Add(res.NativeAmount)
	pos.EntryPrice = pos.EntryValueNative.Div(pos.Quantity)
	pos.UpdatedAt = now
	if err := s.positions.Update(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("position_service: update position %s: %w", pos.ID, err)
	}
	s.metrics.PositionChange("increase")
	return pos, nil
}

// RecordSell books a SELL fill against the open position, removing cost
// basis pro rata with the sold fraction. Selling more than is held is
// rejected and leaves the position unchanged.
func (s *PositionService) RecordSell(ctx context.Context, agentID, tokenMint string, res domain.ExecutionResult) (domain.SellResult, error) {
	sellQty := res.TokenAmount
	if !sellQty.IsPositive() || res.NativeAmount.IsNegative() {
		return domain.SellResult{}, fmt.Errorf("position_service: sell %s of %s: %w", sellQty, tokenMint, domain.ErrInvalidQuantity)
	}

	unlock, err := s.locks.Lock(ctx, positionLockKey(agentID, tokenMint))
	if err != nil {
		return domain.SellResult{}, fmt.Errorf("position_service: lock %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}
	defer unlock()

	pos, err := s.positions.GetOpen(ctx, agentID, tokenMint)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.SellResult{}, fmt.Errorf("position_service: sell %s: %w", domain.PositionKey(agentID, tokenMint), domain.ErrPositionNotFound)
	}
	if err != nil {
		return domain.SellResult{}, fmt.Errorf("position_service: get open %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}
	if sellQty.GreaterThan(pos.Quantity) {
		return domain.SellResult{}, fmt.Errorf("position_service: sell %s exceeds held %s: %w", sellQty, pos.Quantity, domain.ErrInvalidQuantity)
	}

	removed := pos.EntryValueNative
	if sellQty.LessThan(pos.Quantity) {
		removed = pos.EntryValueNative.Mul(sellQty).Div(pos.Quantity)
	}
	realized := res.NativeAmount.Sub(removed)

	now := s.now().UTC()
	pos.Quantity = pos.Quantity.Sub(sellQty)
	pos.EntryValueNative = pos.EntryValueNative.Sub(removed)
	pos.RealizedPnLNative = pos.RealizedPnLNative.Add(realized)
	pos.UpdatedAt = now

	kind := "reduce"
	if pos.Quantity.IsZero() {
		pos.EntryValueNative = decimal.Zero
		pos.EntryPrice = decimal.Zero
		pos.ClosedAt = &now
		kind = "close"
	} else {
		pos.EntryPrice = pos.EntryValueNative.Div(pos.Quantity)
	}

	if err := s.positions.Update(ctx, pos); err != nil {
		return domain.SellResult{}, fmt.Errorf("position_service: update position %s: %w", pos.ID, err)
	}
	s.metrics.PositionChange(kind)

	if kind == "close" {
		s.events.Emit(ctx, domain.EventPositionClosed,
			fmt.Sprintf("%s closed %s, realized %s native", agentID, tokenMint, pos.RealizedPnLNative.StringFixed(6)),
			map[string]any{
				"agent_id":     agentID,
				"token_mint":   tokenMint,
				"position_id":  pos.ID,
				"realized_pnl": pos.RealizedPnLNative.String(),
			})
	}

	return domain.SellResult{Position: pos, CostBasisRemoved: removed, RealizedPnLNative: realized}, nil
}

// GetPosition returns the open position for the pair, or
// domain.ErrPositionNotFound.
func (s *PositionService) GetPosition(ctx context.Context, agentID, tokenMint string) (domain.Position, error) {
	pos, err := s.positions.GetOpen(ctx, agentID, tokenMint)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, fmt.Errorf("position_service: %s: %w", domain.PositionKey(agentID, tokenMint), domain.ErrPositionNotFound)
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("position_service: get open %s: %w", domain.PositionKey(agentID, tokenMint), err)
	}
	return pos, nil
}

// ListPositions returns positions matching filter. An empty AgentID lists
// every agent.
func (s *PositionService) ListPositions(ctx context.Context, filter domain.PositionFilter) ([]domain.Position, error) {
	positions, err := s.positions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("position_service: list positions: %w", err)
	}
	return positions, nil
}

// ValuePosition marks pos to market at quote.
func (s *PositionService) ValuePosition(pos domain.Position, quote domain.PriceQuote) domain.PositionValuation {
	return ValuePosition(pos, quote)
}

// ValuePosition marks pos to market at quote. The percentage is zero when
// the position has no cost basis.
func ValuePosition(pos domain.Position, quote domain.PriceQuote) domain.PositionValuation {
	current := pos.Quantity.Mul(quote.PriceNative)
	unrealized := current.Sub(pos.EntryValueNative)
	pct := decimal.Zero
	if pos.EntryValueNative.IsPositive() {
		pct = unrealized.Div(pos.EntryValueNative).Mul(hundred)
	}
	return domain.PositionValuation{
		CurrentValueNative:  current,
		UnrealizedPnLNative: unrealized,
		UnrealizedPnLPct:    pct,
	}
}

// ObserveMilestones evaluates pos against the ladder at quote. Targets hit
// for the first time are persisted on the open position and announced.
func (s *PositionService) ObserveMilestones(ctx context.Context, pos domain.Position, quote domain.PriceQuote) (domain.Milestone, error) {
	val := ValuePosition(pos, quote)
	ms := milestone.Evaluate(s.ladder, pos.EntryValueNative, val.CurrentValueNative, pos.TargetsHit)
	if len(ms.NewlyHit) == 0 || !pos.IsOpen() {
		return ms, nil
	}

	unlock, err := s.locks.Lock(ctx, positionLockKey(pos.AgentID, pos.TokenMint))
	if err != nil {
		return ms, fmt.Errorf("position_service: lock %s: %w", domain.PositionKey(pos.AgentID, pos.TokenMint), err)
	}
	defer unlock()

	// Re-read under the lock: a trade may have landed since pos was loaded.
	current, err := s.positions.GetOpen(ctx, pos.AgentID, pos.TokenMint)
	if err != nil || current.ID != pos.ID {
		return ms, nil
	}
	ms = milestone.Evaluate(s.ladder, current.EntryValueNative, current.Quantity.Mul(quote.PriceNative), current.TargetsHit)
	if len(ms.NewlyHit) == 0 {
		return ms, nil
	}

	current.TargetsHit = ms.TargetsHit
	current.UpdatedAt = s.now().UTC()
	if err := s.positions.Update(ctx, current); err != nil {
		return ms, fmt.Errorf("position_service: persist targets for %s: %w", current.ID, err)
	}

	for _, i := range ms.NewlyHit {
		s.logger.InfoContext(ctx, "milestone hit",
			slog.String("agent_id", current.AgentID),
			slog.String("token_mint", current.TokenMint),
			slog.Int("target_index", i),
			slog.Float64("target", s.ladder[i]),
			slog.Float64("multiplier", ms.CurrentMultiplier),
		)
		s.events.Emit(ctx, domain.EventMilestoneHit,
			fmt.Sprintf("%s hit %.2fx on %s (now %.2fx)", current.AgentID, s.ladder[i], current.TokenMint, ms.CurrentMultiplier),
			map[string]any{
				"agent_id":     current.AgentID,
				"token_mint":   current.TokenMint,
				"position_id":  current.ID,
				"target_index": i,
				"target":       s.ladder[i],
				"multiplier":   ms.CurrentMultiplier,
			})
	}
	return ms, nil
}
