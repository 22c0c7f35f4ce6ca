package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists positions. GetOpen returns ErrNotFound when the
// pair has no open position.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	Update(ctx context.Context, pos Position) error
	GetOpen(ctx context.Context, agentID, tokenMint string) (Position, error)
	List(ctx context.Context, filter PositionFilter) ([]Position, error)
	ListClosed(ctx context.Context, agentID string, opts ListOpts) ([]Position, error)
}

// TradeStore persists confirmed trade history, newest first on read.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	ListByAgent(ctx context.Context, agentID string, opts ListOpts) ([]TradeRecord, error)
}

// AuditEntry is one row of the append-only audit log.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only log of trade attempts and outcomes.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
