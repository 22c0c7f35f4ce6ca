package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Deduper implements domain.RequestDeduper with SET NX so duplicate trade
// requests are caught across API instances.
type Deduper struct {
	c *Client
}

// NewDeduper creates a Deduper backed by c.
func NewDeduper(c *Client) *Deduper {
	return &Deduper{c: c}
}

// Remember returns true when requestID was not seen within ttl.
func (d *Deduper) Remember(ctx context.Context, requestID string, ttl time.Duration) (bool, error) {
	ok, err := d.c.rdb.SetNX(ctx, d.c.key("req", requestID), time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: remember request %s: %w", requestID, err)
	}
	return ok, nil
}

var _ domain.RequestDeduper = (*Deduper)(nil)
