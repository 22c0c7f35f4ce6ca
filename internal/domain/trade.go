package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a swap relative to the token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide accepts buy/sell in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	default:
		return "", false
	}
}

// ExecutionResult describes one confirmed swap. All amounts are in whole
// units (native asset or token), never raw base units.
type ExecutionResult struct {
	Signature       string          `json:"signature"`
	Side            Side            `json:"side"`
	TokenMint       string          `json:"token_mint"`
	NativeAmount    decimal.Decimal `json:"native_amount"`
	TokenAmount     decimal.Decimal `json:"token_amount"`
	PriorityFeePaid decimal.Decimal `json:"priority_fee_paid"`
	SwapFeePaid     decimal.Decimal `json:"swap_fee_paid"`
	NetworkFeePaid  decimal.Decimal `json:"network_fee_paid"`
	TotalFees       decimal.Decimal `json:"total_fees"`
	SlippageBps     int             `json:"slippage_bps"`
	PriceImpactPct  float64         `json:"price_impact_pct"`
	Attempt         int             `json:"attempt"`
	ExecutionMs     int64           `json:"execution_ms"`
	ExecutedAt      time.Time       `json:"executed_at"`
}

// TradeRequest is a decision to BUY with a native amount or SELL a token
// quantity on behalf of an agent.
type TradeRequest struct {
	RequestID string          `json:"request_id,omitempty"`
	AgentID   string          `json:"agent_id"`
	Side      Side            `json:"side"`
	TokenMint string          `json:"token_mint"`
	Amount    decimal.Decimal `json:"amount"`
}

// TradeRecord is the persisted history entry for a confirmed trade.
type TradeRecord struct {
	ID                string          `json:"id"`
	RequestID         string          `json:"request_id,omitempty"`
	AgentID           string          `json:"agent_id"`
	PositionID        string          `json:"position_id"`
	RealizedPnLNative decimal.Decimal `json:"realized_pnl_native"`
	ExecutionResult
}
