// Package pricing turns a price and a percentage into retail price points
// ending in 00 or 90.
package pricing

import (
	"math"

	"github.com/sells-group/reprice/internal/model"
)

// RoundTo00or90 maps x to the nearest integer ending in 00 or 90.
// Non-positive inputs map to 0. Ties resolve to the larger candidate.
func RoundTo00or90(x float64) model.Money {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	// math.Round is half away from zero, which is half-up for positive x.
	n := int64(math.Round(x))
	base := (n / 100) * 100

	candidates := make([]int64, 0, 4)
	if base-10 > 0 {
		candidates = append(candidates, base-10)
	}
	candidates = append(candidates, base, base+90, base+100)

	best := candidates[0]
	bestDist := absInt(n - best)
	for _, c := range candidates[1:] {
		d := absInt(n - c)
		if d < bestDist || (d == bestDist && c > best) {
			best, bestDist = c, d
		}
	}
	return model.Money(best)
}

// NextAbove returns the smallest amount ending in 00 or 90 that is strictly
// greater than x. Rounding x+1 to the nearest price point falls back onto x
// whenever x already is one, so compare-at bumps go through here instead.
func NextAbove(x float64) model.Money {
	if math.IsNaN(x) || x < 0 {
		x = 0
	}
	base := int64(math.Floor(x/100)) * 100
	if float64(base+90) > x {
		return model.Money(base + 90)
	}
	return model.Money(base + 100)
}

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
