package model

import "time"

// BackupItem is the pre-mutation snapshot of a single variant.
type BackupItem struct {
	ProductID      int64  `json:"product_id"`
	ProductTitle   string `json:"product_title"`
	VariantID      int64  `json:"variant_id"`
	VariantTitle   string `json:"variant_title,omitempty"`
	SKU            string `json:"sku,omitempty"`
	Position       *int   `json:"position,omitempty"`
	Price          Money  `json:"price"`
	CompareAtPrice *Money `json:"compare_at_price"`
}

// SnapshotOf captures the restorable state of v.
func SnapshotOf(v Variant) BackupItem {
	item := BackupItem{
		ProductID:    v.ProductID,
		ProductTitle: v.ProductTitle,
		VariantID:    v.VariantID,
		VariantTitle: v.VariantTitle,
		SKU:          v.SKU,
		Price:        v.Price,
	}
	if v.Position != nil {
		p := *v.Position
		item.Position = &p
	}
	if v.CompareAtPrice != nil {
		item.CompareAtPrice = v.CompareAtPrice.Ptr()
	}
	return item
}

// BackupRecord is an immutable snapshot taken immediately before a mutation run.
// It is the only source of truth for rollback.
type BackupRecord struct {
	ID        string       `json:"backupId"`
	Mode      Mode         `json:"mode"`
	CreatedAt time.Time    `json:"created_at"`
	Pct       *float64     `json:"pct,omitempty"`
	Items     []BackupItem `json:"items"`
}

// RunKind identifies what a run log records.
type RunKind string

const (
	RunKindPercentApply RunKind = "pct-apply"
	RunKindChainApply   RunKind = "chain-apply"
	RunKindRollback     RunKind = "rollback"
)

// Summary aggregates per-item outcomes of an apply or rollback.
// Errored items are counted in both Errors and Skipped.
type Summary struct {
	Updated   int  `json:"updated"`
	Skipped   int  `json:"skipped"`
	Errors    int  `json:"errors"`
	Remaining int  `json:"remaining,omitempty"`
	Cancelled bool `json:"cancelled,omitempty"`
}

// RunLog is the write-once record of an apply or rollback invocation.
type RunLog struct {
	ID         string    `json:"id"`
	Kind       RunKind   `json:"kind"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pct        *float64  `json:"pct,omitempty"`
	BackupID   string    `json:"backupId"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Remaining  int       `json:"remaining,omitempty"`
	Cancelled  bool      `json:"cancelled,omitempty"`
	Lines      []string  `json:"lines"`
}

// Summary returns the counters of the run.
func (l *RunLog) Summary() Summary {
	return Summary{
		Updated:   l.Updated,
		Skipped:   l.Skipped,
		Errors:    l.Errors,
		Remaining: l.Remaining,
		Cancelled: l.Cancelled,
	}
}

// ItemStatus is the outcome of processing a single item in a run.
type ItemStatus string

const (
	ItemUpdated ItemStatus = "updated"
	ItemSkipped ItemStatus = "skipped"
	ItemError   ItemStatus = "error"
)

// ItemResult is the value produced for each item of a mutation batch.
type ItemResult struct {
	VariantID int64      `json:"variant_id"`
	Status    ItemStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
}
