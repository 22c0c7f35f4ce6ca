package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an agent's holding of one token. At most one open position
// exists per (AgentID, TokenMint); closed positions are kept for history.
type Position struct {
	ID                string          `json:"id"`
	AgentID           string          `json:"agent_id"`
	TokenMint         string          `json:"token_mint"`
	Quantity          decimal.Decimal `json:"quantity"`
	EntryValueNative  decimal.Decimal `json:"entry_value_native"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	RealizedPnLNative decimal.Decimal `json:"realized_pnl_native"`
	TargetsHit        []int           `json:"targets_hit"`
	OpenedAt          time.Time       `json:"opened_at"`
	ClosedAt          *time.Time      `json:"closed_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsOpen reports whether the position still holds tokens.
func (p Position) IsOpen() bool {
	return p.ClosedAt == nil
}

// PositionKey identifies the serialization domain for position mutations.
func PositionKey(agentID, tokenMint string) string {
	return agentID + ":" + tokenMint
}

// PositionFilter narrows ListPositions. An empty AgentID matches all agents.
type PositionFilter struct {
	AgentID  string
	OpenOnly bool
}

// SellResult is the outcome of booking a SELL against a position.
type SellResult struct {
	Position          Position        `json:"position"`
	CostBasisRemoved  decimal.Decimal `json:"cost_basis_removed"`
	RealizedPnLNative decimal.Decimal `json:"realized_pnl_native"`
}

// PositionValuation is the mark-to-market view of a position at one price.
type PositionValuation struct {
	CurrentValueNative  decimal.Decimal `json:"current_value_native"`
	UnrealizedPnLNative decimal.Decimal `json:"unrealized_pnl_native"`
	UnrealizedPnLPct    decimal.Decimal `json:"unrealized_pnl_pct"`
}

// Milestone is the take-profit ladder progress of a position.
type Milestone struct {
	CurrentMultiplier float64  `json:"current_multiplier"`
	TargetsHit        []int    `json:"targets_hit"`
	NewlyHit          []int    `json:"newly_hit,omitempty"`
	NextTarget        *float64 `json:"next_target"`
	Progress          float64  `json:"progress"`
}

// PositionView is a position with live valuation attached. Nil pointers
// mean the price was unavailable.
type PositionView struct {
	Position  Position           `json:"position"`
	Price     *PriceQuote        `json:"price"`
	Valuation *PositionValuation `json:"valuation"`
	Milestone *Milestone         `json:"milestone"`
}
