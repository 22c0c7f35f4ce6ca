package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// QuoteCache implements domain.QuoteCache with one Redis hash per mint at
// "{prefix}price:{mint}". Redis expires the hash, so a read can never see
// an entry past its TTL.
type QuoteCache struct {
	c *Client
}

// NewQuoteCache creates a QuoteCache backed by c.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{c: c}
}

// Get returns the cached quote for tokenMint. Redis errors count as a miss.
func (qc *QuoteCache) Get(ctx context.Context, tokenMint string) (domain.PriceQuote, bool) {
	vals, err := qc.c.rdb.HGetAll(ctx, qc.c.key("price", tokenMint)).Result()
	if err != nil || len(vals) == 0 {
		return domain.PriceQuote{}, false
	}

	native, err := decimal.NewFromString(vals["native"])
	if err != nil {
		return domain.PriceQuote{}, false
	}
	usd, err := decimal.NewFromString(vals["usd"])
	if err != nil {
		return domain.PriceQuote{}, false
	}
	liq, _ := strconv.ParseFloat(vals["liquidity"], 64)
	ts, _ := strconv.ParseInt(vals["ts"], 10, 64)

	return domain.PriceQuote{
		TokenMint:    tokenMint,
		PriceNative:  native,
		PriceUSD:     usd,
		LiquidityUSD: liq,
		FetchedAt:    time.Unix(0, ts).UTC(),
		Source:       vals["source"],
	}, true
}

// Set writes the quote and its expiry in one MULTI/EXEC.
func (qc *QuoteCache) Set(ctx context.Context, q domain.PriceQuote, ttl time.Duration) error {
	key := qc.c.key("price", q.TokenMint)
	fields := map[string]any{
		"native":    q.PriceNative.String(),
		"usd":       q.PriceUSD.String(),
		"liquidity": strconv.FormatFloat(q.LiquidityUSD, 'f', -1, 64),
		"ts":        strconv.FormatInt(q.FetchedAt.UnixNano(), 10),
		"source":    q.Source,
	}
	_, err := qc.c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.TokenMint, err)
	}
	return nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
