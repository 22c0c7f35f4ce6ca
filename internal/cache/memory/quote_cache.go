// Package memory implements the domain cache interfaces in process memory.
// It is the default backend and the one used in tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

type quoteEntry struct {
	quote     domain.PriceQuote
	expiresAt time.Time
}

// QuoteCache implements domain.QuoteCache with a mutex-guarded map. Expired
// entries are never returned and are dropped lazily on read or by Sweep.
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[string]quoteEntry
	now     func() time.Time
}

// NewQuoteCache creates an empty QuoteCache using the wall clock.
func NewQuoteCache() *QuoteCache {
	return NewQuoteCacheWithClock(time.Now)
}

// NewQuoteCacheWithClock creates a QuoteCache that reads time from now.
func NewQuoteCacheWithClock(now func() time.Time) *QuoteCache {
	return &QuoteCache{
		entries: make(map[string]quoteEntry),
		now:     now,
	}
}

// Get returns the cached quote for tokenMint if it has not expired.
func (c *QuoteCache) Get(_ context.Context, tokenMint string) (domain.PriceQuote, bool) {
	c.mu.RLock()
	e, ok := c.entries[tokenMint]
	c.mu.RUnlock()
	if !ok {
		return domain.PriceQuote{}, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[tokenMint]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, tokenMint)
		}
		c.mu.Unlock()
		return domain.PriceQuote{}, false
	}
	return e.quote, true
}

// Set stores quote until ttl has elapsed.
func (c *QuoteCache) Set(_ context.Context, quote domain.PriceQuote, ttl time.Duration) error {
	c.mu.Lock()
	c.entries[quote.TokenMint] = quoteEntry{quote: quote, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *QuoteCache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for mint, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, mint)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
