package model

import "strconv"

// Money is a price amount in the catalog's integer price unit.
type Money int64

// Ptr returns a pointer to a copy of m.
func (m Money) Ptr() *Money {
	return &m
}

// String renders the amount without separators.
func (m Money) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// FormatOptional renders an optional amount, using "null" when absent.
func FormatOptional(m *Money) string {
	if m == nil {
		return "null"
	}
	return m.String()
}

// Mode selects the transformation applied by a run.
type Mode string

const (
	ModePercent Mode = "pct"
	ModeChain   Mode = "chain"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePercent || m == ModeChain
}

// Variant is a sellable unit of a product as fetched from the catalog.
type Variant struct {
	ProductID          int64    `json:"product_id"`
	ProductTitle       string   `json:"product_title"`
	Handle             string   `json:"handle"`
	VariantID          int64    `json:"variant_id"`
	VariantTitle       string   `json:"variant_title"`
	Position           *int     `json:"position,omitempty"`
	SKU                string   `json:"sku,omitempty"`
	Price              Money    `json:"price"`
	CompareAtPrice     *Money   `json:"compare_at_price"`
	ProductOptionNames []string `json:"product_option_names,omitempty"`
	ProductTags        []string `json:"product_tags,omitempty"`
}

// PreviewRow is a variant with its percentage-mode target prices.
type PreviewRow struct {
	Variant
	NewPrice   Money  `json:"newPrice"`
	NewCompare *Money `json:"newCompare"`
}

// ChainReason explains the outcome of a chain correction for one variant.
type ChainReason string

const (
	ChainReasonOK                ChainReason = "ok"
	ChainReasonNoBaselineCompare ChainReason = "no-baseline-compare"
)

// ChainPreviewRow is a variant with its corrected compare-at price.
type ChainPreviewRow struct {
	ProductID    int64       `json:"product_id"`
	ProductTitle string      `json:"product_title"`
	Handle       string      `json:"handle"`
	VariantID    int64       `json:"variant_id"`
	VariantTitle string      `json:"variant_title"`
	Position     *int        `json:"position,omitempty"`
	SKU          string      `json:"sku,omitempty"`
	Price        Money       `json:"price"`
	OldCompare   *Money      `json:"old_compare"`
	NewCompare   *Money      `json:"new_compare"`
	Reason       ChainReason `json:"reason"`
}
