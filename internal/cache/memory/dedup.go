package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Deduper remembers request IDs for a TTL window. It is safe for
// concurrent use.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time // requestID -> expiry
	now  func() time.Time
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]time.Time), now: time.Now}
}

// Remember records requestID and returns true, or returns false when it is
// already known and unexpired.
func (d *Deduper) Remember(_ context.Context, requestID string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if exp, ok := d.seen[requestID]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[requestID] = now.Add(ttl)
	return true, nil
}

// Cleanup drops expired IDs. Call it periodically to bound memory.
func (d *Deduper) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
		}
	}
}

var _ domain.RequestDeduper = (*Deduper)(nil)
