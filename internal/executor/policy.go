package executor

import (
	"context"
	"math"
	"time"
)

// FeePolicy decides the priority fee, in lamports, for each attempt.
type FeePolicy interface {
	Initial() uint64
	Next(current uint64) uint64
}

// EscalatingFees multiplies the fee on every retry up to Ceiling.
type EscalatingFees struct {
	InitialLamports uint64
	Multiplier      float64 // 2 when <= 1
	CeilingLamports uint64  // no ceiling when 0
}

// Initial returns the first-attempt fee, capped by the ceiling.
func (p EscalatingFees) Initial() uint64 {
	return p.clamp(p.InitialLamports)
}

// Next returns the fee for the attempt after one that paid current.
func (p EscalatingFees) Next(current uint64) uint64 {
	m := p.Multiplier
	if m <= 1 {
		m = 2
	}
	if current == 0 {
		current = 1
	}
	next := float64(current) * m
	if next >= math.MaxUint64 {
		return p.clamp(math.MaxUint64)
	}
	return p.clamp(uint64(math.Ceil(next)))
}

func (p EscalatingFees) clamp(v uint64) uint64 {
	if p.CeilingLamports > 0 && v > p.CeilingLamports {
		return p.CeilingLamports
	}
	return v
}

// Backoff is the wait before retry number attempt (1-based: the wait after
// the first failure is Backoff(1)).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff returns initial * 2^(attempt-1), capped at max.
func ExponentialBackoff(initial, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if initial <= 0 {
			return 0
		}
		d := float64(initial) * math.Pow(2, float64(attempt-1))
		if max > 0 && d > float64(max) {
			return max
		}
		return time.Duration(d)
	}
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
