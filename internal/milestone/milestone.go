// Package milestone tracks a position's progress along a take-profit ladder.
// Everything here is pure; persistence of the ratcheted targets is the
// caller's job.
package milestone

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Ladder is an ascending list of take-profit multipliers, e.g. 1.5, 2, 3.
type Ladder []float64

// Validate checks that the ladder is non-empty, positive and strictly
// increasing.
func (l Ladder) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("milestone: ladder is empty")
	}
	for i, m := range l {
		if m <= 0 {
			return fmt.Errorf("milestone: ladder[%d] = %v must be positive", i, m)
		}
		if i > 0 && m <= l[i-1] {
			return fmt.Errorf("milestone: ladder[%d] = %v is not above ladder[%d] = %v", i, m, i-1, l[i-1])
		}
	}
	return nil
}

// Multiplier returns current / entry, or 0 when entry is not positive.
func Multiplier(entryValue, currentValue decimal.Decimal) float64 {
	if !entryValue.IsPositive() {
		return 0
	}
	return currentValue.Div(entryValue).InexactFloat64()
}

// Evaluate ratchets targetsHit against the current multiplier and reports
// progress toward the next unhit target. Indices already in targetsHit are
// kept even when the multiplier has fallen back below them.
func Evaluate(ladder Ladder, entryValue, currentValue decimal.Decimal, targetsHit []int) domain.Milestone {
	m := Multiplier(entryValue, currentValue)

	hit := make(map[int]bool, len(ladder))
	for _, i := range targetsHit {
		if i >= 0 && i < len(ladder) {
			hit[i] = true
		}
	}

	var newly []int
	for i, threshold := range ladder {
		if !hit[i] && m >= threshold {
			hit[i] = true
			newly = append(newly, i)
		}
	}

	all := make([]int, 0, len(hit))
	for i := range hit {
		all = append(all, i)
	}
	slices.Sort(all)

	out := domain.Milestone{
		CurrentMultiplier: m,
		TargetsHit:        all,
		NewlyHit:          newly,
	}

	next := -1
	for i := range ladder {
		if !hit[i] {
			next = i
			break
		}
	}
	if next < 0 {
		out.Progress = 1
		return out
	}

	target := ladder[next]
	out.NextTarget = &target

	prev := 1.0
	for i := next - 1; i >= 0; i-- {
		if hit[i] {
			prev = ladder[i]
			break
		}
	}
	out.Progress = progress(m, prev, target)
	return out
}

func progress(m, prev, next float64) float64 {
	span := next - prev
	if span <= 0 {
		if m >= next {
			return 1
		}
		return 0
	}
	p := (m - prev) / span
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
