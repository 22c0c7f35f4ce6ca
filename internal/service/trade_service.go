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
)

// TradeExecutor swaps on behalf of a signer. *executor.Executor satisfies it.
type TradeExecutor interface {
	ExecuteBuy(ctx context.Context, signer domain.TxSigner, tokenMint string, nativeAmount decimal.Decimal) (domain.ExecutionResult, error)
	ExecuteSell(ctx context.Context, signer domain.TxSigner, tokenMint string, tokenQuantity decimal.Decimal) (domain.ExecutionResult, error)
}

// SignerSource resolves an agent's wallet. *crypto.Keyring satisfies it.
type SignerSource interface {
	Signer(agentID string) (domain.TxSigner, error)
}

// TradeService runs a trade request end to end: validation, idempotency,
// risk limits, execution and bookkeeping. Requests for the same
// (agent, token) are executed one at a time so positions are updated in
// confirmation order.
type TradeService struct {
	exec      TradeExecutor
	signers   SignerSource
	positions *PositionService
	trades    domain.TradeStore
	audit     domain.AuditStore
	locks     domain.KeyLocker

	risk     *RiskService
	dedup    domain.RequestDeduper
	dedupTTL time.Duration
	events   *Events
	logger   *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	exec TradeExecutor,
	signers SignerSource,
	positions *PositionService,
	trades domain.TradeStore,
	audit domain.AuditStore,
	locks domain.KeyLocker,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		exec:      exec,
		signers:   signers,
		positions: positions,
		trades:    trades,
		audit:     audit,
		locks:     locks,
		logger:    logger.With(slog.String("component", "trades")),
	}
}

// SetRisk enables pre-trade risk checks.
func (s *TradeService) SetRisk(r *RiskService) { s.risk = r }

// SetDeduper rejects a repeated request ID seen within ttl.
func (s *TradeService) SetDeduper(d domain.RequestDeduper, ttl time.Duration) {
	s.dedup = d
	s.dedupTTL = ttl
}

// SetEvents attaches the lifecycle event fan-out.
func (s *TradeService) SetEvents(e *Events) { s.events = e }

// Execute runs req and returns the persisted trade record. Failures carry
// their cause: *domain.ExecutionError for execution, or one of
// domain.ErrInvalidAmount, ErrUnknownAgent, ErrDuplicateRequest,
// ErrRiskRejected, ErrPositionNotFound, ErrInvalidQuantity. A failed
// execution never touches positions.
func (s *TradeService) Execute(ctx context.Context, req domain.TradeRequest) (domain.TradeRecord, error) {
	if req.AgentID == "" || req.TokenMint == "" {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: agent_id and token_mint are required: %w", domain.ErrInvalidAmount)
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: side %q: %w", req.Side, domain.ErrInvalidAmount)
	}
	if !req.Amount.IsPositive() {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: amount %s: %w", req.Amount, domain.ErrInvalidAmount)
	}

	signer, err := s.signers.Signer(req.AgentID)
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: %w", err)
	}

	if req.RequestID != "" && s.dedup != nil {
		fresh, err := s.dedup.Remember(ctx, req.RequestID, s.dedupTTL)
		if err != nil {
			return domain.TradeRecord{}, fmt.Errorf("trade_service: dedup %s: %w", req.RequestID, err)
		}
		if !fresh {
			return domain.TradeRecord{}, fmt.Errorf("trade_service: request %s: %w", req.RequestID, domain.ErrDuplicateRequest)
		}
	}

	unlock, err := s.locks.Lock(ctx, "exec:"+domain.PositionKey(req.AgentID, req.TokenMint))
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("trade_service: lock: %w", err)
	}
	defer unlock()

	if err := s.precheck(ctx, req); err != nil {
		return domain.TradeRecord{}, err
	}

	// From here a transaction may reach the chain. Run it to completion even
	// if the caller goes away; the executor's timeouts and attempt cap bound
	// the work.
	ctx = context.WithoutCancel(ctx)

	var res domain.ExecutionResult
	if req.Side == domain.SideBuy {
		res, err = s.exec.ExecuteBuy(ctx, signer, req.TokenMint, req.Amount)
	} else {
		res, err = s.exec.ExecuteSell(ctx, signer, req.TokenMint, req.Amount)
	}
	if err != nil {
		s.recordFailure(ctx, req, err)
		return domain.TradeRecord{}, fmt.Errorf("trade_service: %s %s: %w", req.Side, req.TokenMint, err)
	}

	rec := domain.TradeRecord{
		ID:                uuid.NewString(),
		RequestID:         req.RequestID,
		AgentID:           req.AgentID,
		RealizedPnLNative: decimal.Zero,
		ExecutionResult:   res,
	}
	if req.Side == domain.SideBuy {
		pos, err := s.positions.RecordBuy(ctx, req.AgentID, req.TokenMint, res)
		if err != nil {
			s.recordBookkeepingFailure(ctx, req, res, err)
			return domain.TradeRecord{}, fmt.Errorf("trade_service: record buy %s: %w", res.Signature, err)
		}
		rec.PositionID = pos.ID
	} else {
		sold, err := s.positions.RecordSell(ctx, req.AgentID, req.TokenMint, res)
		if err != nil {
			s.recordBookkeepingFailure(ctx, req, res, err)
			return domain.TradeRecord{}, fmt.Errorf("trade_service: record sell %s: %w", res.Signature, err)
		}
		rec.PositionID = sold.Position.ID
		rec.RealizedPnLNative = sold.RealizedPnLNative
	}

	if err := s.trades.Insert(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "persist trade failed",
			slog.String("trade_id", rec.ID),
			slog.String("signature", res.Signature),
			slog.String("error", err.Error()),
		)
	}
	s.recordSuccess(ctx, rec)
	return rec, nil
}

// precheck rejects a request before any transaction is built: a SELL needs
// an open position holding at least the amount, a BUY must pass risk.
func (s *TradeService) precheck(ctx context.Context, req domain.TradeRequest) error {
	if req.Side == domain.SideSell {
		pos, err := s.positions.GetPosition(ctx, req.AgentID, req.TokenMint)
		if err != nil {
			return fmt.Errorf("trade_service: %w", err)
		}
		if req.Amount.GreaterThan(pos.Quantity) {
			return fmt.Errorf("trade_service: sell %s exceeds held %s: %w", req.Amount, pos.Quantity, domain.ErrInvalidQuantity)
		}
		return nil
	}
	if s.risk != nil {
		if err := s.risk.PreTradeCheck(ctx, req); err != nil {
			return fmt.Errorf("trade_service: %w", err)
		}
	}
	return nil
}

// History returns an agent's confirmed trades, newest first.
func (s *TradeService) History(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	trades, err := s.trades.ListByAgent(ctx, agentID, opts)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list trades for %q: %w", agentID, err)
	}
	return trades, nil
}

func (s *TradeService) recordSuccess(ctx context.Context, rec domain.TradeRecord) {
	s.logger.InfoContext(ctx, "trade executed",
		slog.String("agent_id", rec.AgentID),
		slog.String("side", string(rec.Side)),
		slog.String("token_mint", rec.TokenMint),
		slog.String("signature", rec.Signature),
		slog.String("native_amount", rec.NativeAmount.String()),
		slog.String("token_amount", rec.TokenAmount.String()),
		slog.String("total_fees", rec.TotalFees.String()),
		slog.Int("attempt", rec.Attempt),
		slog.Int64("execution_ms", rec.ExecutionMs),
	)

	detail := map[string]any{
		"trade_id":      rec.ID,
		"agent_id":      rec.AgentID,
		"side":          string(rec.Side),
		"token_mint":    rec.TokenMint,
		"signature":     rec.Signature,
		"native_amount": rec.NativeAmount.String(),
		"token_amount":  rec.TokenAmount.String(),
		"total_fees":    rec.TotalFees.String(),
		"attempt":       rec.Attempt,
		"execution_ms":  rec.ExecutionMs,
	}
	if rec.Side == domain.SideSell {
		detail["realized_pnl"] = rec.RealizedPnLNative.String()
	}
	if err := s.audit.Log(ctx, domain.EventTradeExecuted, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}

	s.events.Emit(ctx, domain.EventTradeExecuted,
		fmt.Sprintf("%s %s %s of %s for %s native (attempt %d, fees %s)",
			rec.AgentID, rec.Side, rec.TokenAmount, rec.TokenMint, rec.NativeAmount, rec.Attempt, rec.TotalFees),
		detail)
}

func (s *TradeService) recordFailure(ctx context.Context, req domain.TradeRequest, err error) {
	attempts := 0
	kind := "error"
	signature := ""
	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		attempts = execErr.Attempts
		kind = execErr.Kind.Error()
		signature = execErr.Signature
	}

	s.logger.WarnContext(ctx, "trade failed",
		slog.String("agent_id", req.AgentID),
		slog.String("side", string(req.Side)),
		slog.String("token_mint", req.TokenMint),
		slog.String("kind", kind),
		slog.Int("attempts", attempts),
		slog.String("signature", signature),
		slog.String("error", err.Error()),
	)

	detail := map[string]any{
		"agent_id":   req.AgentID,
		"side":       string(req.Side),
		"token_mint": req.TokenMint,
		"amount":     req.Amount.String(),
		"kind":       kind,
		"attempts":   attempts,
		"error":      err.Error(),
	}
	if req.RequestID != "" {
		detail["request_id"] = req.RequestID
	}
	if signature != "" {
		detail["signature"] = signature
	}
	if aerr := s.audit.Log(ctx, domain.EventTradeFailed, detail); aerr != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", aerr.Error()))
	}
	s.events.Emit(ctx, domain.EventTradeFailed,
		fmt.Sprintf("%s %s %s failed: %s after %d attempt(s)", req.AgentID, req.Side, req.TokenMint, kind, attempts),
		detail)
}

// recordBookkeepingFailure covers a swap that confirmed on chain but could
// not be booked. The signature is kept in the audit log for manual repair.
func (s *TradeService) recordBookkeepingFailure(ctx context.Context, req domain.TradeRequest, res domain.ExecutionResult, err error) {
	s.logger.ErrorContext(ctx, "confirmed trade not booked",
		slog.String("agent_id", req.AgentID),
		slog.String("token_mint", req.TokenMint),
		slog.String("signature", res.Signature),
		slog.String("error", err.Error()),
	)
	if aerr := s.audit.Log(ctx, "trade.unbooked", map[string]any{
		"agent_id":      req.AgentID,
		"side":          string(res.Side),
		"token_mint":    req.TokenMint,
		"signature":     res.Signature,
		"native_amount": res.NativeAmount.String(),
		"token_amount":  res.TokenAmount.String(),
		"error":         err.Error(),
	}); aerr != nil {
		s.logger.WarnContext(ctx, "audit log failed", slog.String("error", aerr.Error()))
	}
}
