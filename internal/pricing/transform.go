package pricing

import (
	"math"

	"github.com/sells-group/reprice/internal/model"
)

// ComputeNew applies pct to price and compareAt and rounds both to retail
// price points. A present compare-at always ends strictly above the new price.
func ComputeNew(price model.Money, compareAt *model.Money, pct float64) (model.Money, *model.Money) {
	factor := 1 + pct/100
	newPrice := RoundTo00or90(float64(price) * factor)
	if compareAt == nil {
		return newPrice, nil
	}

	newCompare := RoundTo00or90(float64(*compareAt) * factor)
	if newCompare <= newPrice {
		newCompare = NextAbove(float64(newPrice))
	}
	return newPrice, &newCompare
}

// PercentRows computes the percentage-mode preview for every variant, in input order.
func PercentRows(variants []model.Variant, pct float64) []model.PreviewRow {
	rows := make([]model.PreviewRow, 0, len(variants))
	for _, v := range variants {
		newPrice, newCompare := ComputeNew(v.Price, v.CompareAtPrice, pct)
		rows = append(rows, model.PreviewRow{
			Variant:    v,
			NewPrice:   newPrice,
			NewCompare: newCompare,
		})
	}
	return rows
}

// ValidatePct rejects percentages that cannot produce a positive price.
func ValidatePct(pct float64) error {
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return model.NewValidationError("pct", "must be a finite number")
	}
	if pct <= -100 {
		return model.NewValidationError("pct", "must be greater than -100")
	}
	return nil
}
