package domain

import (
	"context"
	"time"
)

// QuoteCache holds price quotes for a bounded time. Get must never return
// an entry older than the TTL it was stored with.
type QuoteCache interface {
	Get(ctx context.Context, tokenMint string) (PriceQuote, bool)
	Set(ctx context.Context, quote PriceQuote, ttl time.Duration) error
}

// KeyLocker serializes work per key. Lock blocks until the key is free or
// ctx is done; the returned unlock func is safe to call more than once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RequestDeduper remembers trade request IDs for a bounded window.
// Remember returns false when the ID was already seen within ttl.
type RequestDeduper interface {
	Remember(ctx context.Context, requestID string, ttl time.Duration) (bool, error)
}

// EventBus publishes lifecycle events to downstream consumers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// Event channels.
const (
	EventTradeExecuted  = "trade.executed"
	EventTradeFailed    = "trade.failed"
	EventMilestoneHit   = "milestone.hit"
	EventPositionClosed = "position.closed"
)
