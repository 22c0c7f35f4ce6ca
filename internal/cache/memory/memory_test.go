package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestQuoteCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewQuoteCacheWithClock(clock.Now)
	ctx := context.Background()

	q := domain.PriceQuote{TokenMint: "MINT", PriceNative: decimal.NewFromFloat(0.5)}
	if err := c.Set(ctx, q, 10*time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(9 * time.Second)
	got, ok := c.Get(ctx, "MINT")
	if !ok || !got.PriceNative.Equal(q.PriceNative) {
		t.Fatalf("Get() before expiry = %v, %v, want hit", got, ok)
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "MINT"); ok {
		t.Fatalf("Get() at expiry returned a hit")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() after expired read = %d, want 0", c.Len())
	}
}

func TestQuoteCacheSweep(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewQuoteCacheWithClock(clock.Now)
	ctx := context.Background()

	_ = c.Set(ctx, domain.PriceQuote{TokenMint: "A"}, time.Second)
	_ = c.Set(ctx, domain.PriceQuote{TokenMint: "B"}, time.Minute)
	clock.Advance(2 * time.Second)

	if n := c.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := c.Get(ctx, "B"); !ok {
		t.Fatalf("Get(B) after sweep missed")
	}
}

func TestKeyLockerSerializesSameKey(t *testing.T) {
	l := NewKeyLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "agent:mint")
			if err != nil {
				t.Errorf("Lock() error = %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
	if l.Held() != 0 {
		t.Fatalf("Held() = %d after all unlocked, want 0", l.Held())
	}
}

func TestKeyLockerIndependentKeys(t *testing.T) {
	l := NewKeyLocker()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock(a) error = %v", err)
	}
	defer unlockA()

	ctxB, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := l.Lock(ctxB, "b")
	if err != nil {
		t.Fatalf("Lock(b) while a held: %v", err)
	}
	unlockB()
}

func TestKeyLockerContextCancel(t *testing.T) {
	l := NewKeyLocker()
	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); err == nil {
		t.Fatalf("Lock() on held key returned nil error after timeout")
	}

	unlock()
	unlock() // second call is a no-op
	if l.Held() != 0 {
		t.Fatalf("Held() = %d, want 0", l.Held())
	}
}

func TestDeduper(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	d := NewDeduper()
	d.now = clock.Now
	ctx := context.Background()

	if ok, _ := d.Remember(ctx, "req-1", time.Minute); !ok {
		t.Fatalf("first Remember() = false, want true")
	}
	if ok, _ := d.Remember(ctx, "req-1", time.Minute); ok {
		t.Fatalf("duplicate Remember() = true, want false")
	}

	clock.Advance(time.Minute)
	d.Cleanup()
	if ok, _ := d.Remember(ctx, "req-1", time.Minute); !ok {
		t.Fatalf("Remember() after expiry = false, want true")
	}
}
