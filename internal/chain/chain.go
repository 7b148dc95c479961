// Package chain detects chain-style variant groups and re-derives their
// compare-at prices from a baseline sibling.
package chain

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/pricing"
)

// DefaultOptionName is the product option label that marks chain products.
const DefaultOptionName = "chain variants"

// DefaultMinMatches is the number of known chain titles a product must carry.
const DefaultMinMatches = 3

// DefaultNames is the reference vocabulary of known chain-size titles.
var DefaultNames = []string{
	"forsat s", "forsat m", "forsat l",
	"gourmette s", "gourmette m",
	"chopard s", "chopard m",
}

// Config controls product qualification.
type Config struct {
	OptionName string   `yaml:"option_name" mapstructure:"option_name"`
	MinMatches int      `yaml:"min_matches" mapstructure:"min_matches"`
	Names      []string `yaml:"names" mapstructure:"names"`
}

// Grouper qualifies products and computes chain corrections.
type Grouper struct {
	optionName string
	minMatches int
	names      map[string]struct{}
}

// New creates a Grouper, falling back to the defaults for unset fields.
func New(cfg Config) *Grouper {
	if strings.TrimSpace(cfg.OptionName) == "" {
		cfg.OptionName = DefaultOptionName
	}
	if cfg.MinMatches <= 0 {
		cfg.MinMatches = DefaultMinMatches
	}
	if len(cfg.Names) == 0 {
		cfg.Names = DefaultNames
	}
	g := &Grouper{
		optionName: normalize(cfg.OptionName),
		minMatches: cfg.MinMatches,
		names:      make(map[string]struct{}, len(cfg.Names)),
	}
	for _, n := range cfg.Names {
		g.names[normalize(n)] = struct{}{}
	}
	return g
}

// Group is the variants of one product in input order.
type Group struct {
	ProductID int64
	Variants  []model.Variant
}

// GroupByProduct partitions variants by product id. Groups appear in the
// order their product was first seen.
func GroupByProduct(variants []model.Variant) []Group {
	index := make(map[int64]int)
	var groups []Group
	for _, v := range variants {
		i, ok := index[v.ProductID]
		if !ok {
			i = len(groups)
			index[v.ProductID] = i
			groups = append(groups, Group{ProductID: v.ProductID})
		}
		groups[i].Variants = append(groups[i].Variants, v)
	}
	return groups
}

// Qualifies reports whether the product carries the chain option label and
// at least MinMatches distinct known chain titles.
func (g *Grouper) Qualifies(variants []model.Variant) bool {
	if len(variants) == 0 {
		return false
	}

	hasOption := false
	for _, name := range variants[0].ProductOptionNames {
		if normalize(name) == g.optionName {
			hasOption = true
			break
		}
	}
	if !hasOption {
		return false
	}

	seen := make(map[string]struct{})
	for _, v := range variants {
		t := normalize(v.VariantTitle)
		if _, known := g.names[t]; known {
			seen[t] = struct{}{}
		}
	}
	return len(seen) >= g.minMatches
}

// ComputeFix derives each variant's compare-at from the baseline sibling
// (position 1, else the first by position). Rows come back position-ordered.
func ComputeFix(variants []model.Variant) []model.ChainPreviewRow {
	sorted := make([]model.Variant, len(variants))
	copy(sorted, variants)
	sort.SliceStable(sorted, func(i, j int) bool {
		return positionLess(sorted[i].Position, sorted[j].Position)
	})
	if len(sorted) == 0 {
		return nil
	}

	baseline := sorted[0]
	for _, v := range sorted {
		if v.Position != nil && *v.Position == 1 {
			baseline = v
			break
		}
	}

	rows := make([]model.ChainPreviewRow, 0, len(sorted))
	if baseline.CompareAtPrice == nil {
		for _, v := range sorted {
			rows = append(rows, newRow(v, nil, model.ChainReasonNoBaselineCompare))
		}
		return rows
	}

	baseCompare := *baseline.CompareAtPrice
	for _, v := range sorted {
		delta := v.Price - baseline.Price
		target := pricing.RoundTo00or90(float64(baseCompare + delta))
		if target <= v.Price {
			target = pricing.NextAbove(float64(v.Price))
		}
		rows = append(rows, newRow(v, &target, model.ChainReasonOK))
	}
	return rows
}

// Preview returns correction rows for every qualifying product.
func (g *Grouper) Preview(variants []model.Variant) []model.ChainPreviewRow {
	var rows []model.ChainPreviewRow
	for _, grp := range GroupByProduct(variants) {
		if !g.Qualifies(grp.Variants) {
			continue
		}
		rows = append(rows, ComputeFix(grp.Variants)...)
	}
	return rows
}

// InScope returns the variants of qualifying products, grouped by product.
func (g *Grouper) InScope(variants []model.Variant) []model.Variant {
	var out []model.Variant
	for _, grp := range GroupByProduct(variants) {
		if g.Qualifies(grp.Variants) {
			out = append(out, grp.Variants...)
		}
	}
	return out
}

func newRow(v model.Variant, newCompare *model.Money, reason model.ChainReason) model.ChainPreviewRow {
	return model.ChainPreviewRow{
		ProductID:    v.ProductID,
		ProductTitle: v.ProductTitle,
		Handle:       v.Handle,
		VariantID:    v.VariantID,
		VariantTitle: v.VariantTitle,
		Position:     v.Position,
		SKU:          v.SKU,
		Price:        v.Price,
		OldCompare:   v.CompareAtPrice,
		NewCompare:   newCompare,
		Reason:       reason,
	}
}

// positionLess orders by position; variants without one sort last.
func positionLess(a, b *int) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

func normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
