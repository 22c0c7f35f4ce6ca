package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, COALESCE(request_id, ''), agent_id, position_id, signature,
	side, token_mint, native_amount, token_amount,
	priority_fee_paid, swap_fee_paid, network_fee_paid, total_fees,
	slippage_bps, price_impact_pct, attempt, execution_ms,
	realized_pnl_native, executed_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	trades := []domain.TradeRecord{}
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		if err := rows.Scan(
			&t.ID, &t.RequestID, &t.AgentID, &t.PositionID, &t.Signature,
			&side, &t.TokenMint, &t.NativeAmount, &t.TokenAmount,
			&t.PriorityFeePaid, &t.SwapFeePaid, &t.NetworkFeePaid, &t.TotalFees,
			&t.SlippageBps, &t.PriceImpactPct, &t.Attempt, &t.ExecutionMs,
			&t.RealizedPnLNative, &t.ExecutedAt,
		); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert records a confirmed trade. A repeated signature is skipped so a
// retried bookkeeping call never duplicates history.
func (s *TradeStore) Insert(ctx context.Context, t domain.TradeRecord) error {
	var requestID *string
	if t.RequestID != "" {
		requestID = &t.RequestID
	}

	const query = `
		INSERT INTO trades (
			id, request_id, agent_id, position_id, signature,
			side, token_mint, native_amount, token_amount,
			priority_fee_paid, swap_fee_paid, network_fee_paid, total_fees,
			slippage_bps, price_impact_pct, attempt, execution_ms,
			realized_pnl_native, executed_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19
		) ON CONFLICT (signature) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, requestID, t.AgentID, t.PositionID, t.Signature,
		string(t.Side), t.TokenMint, t.NativeAmount, t.TokenAmount,
		t.PriorityFeePaid, t.SwapFeePaid, t.NetworkFeePaid, t.TotalFees,
		t.SlippageBps, t.PriceImpactPct, t.Attempt, t.ExecutionMs,
		t.RealizedPnLNative, t.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListByAgent returns an agent's trades, newest first.
func (s *TradeStore) ListByAgent(ctx context.Context, agentID string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := withListOpts(
		`SELECT `+tradeSelectCols+` FROM trades WHERE agent_id = $1`,
		[]any{agentID}, "executed_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", agentID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
