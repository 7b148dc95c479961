// Package runner drives preview, backup, apply and rollback runs against the catalog.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reprice/internal/chain"
	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/pricing"
	"github.com/sells-group/reprice/internal/store"
	"github.com/sells-group/reprice/internal/throttle"
	"github.com/sells-group/reprice/pkg/shopify"
)

// ErrRunInProgress is returned when an apply or rollback is already running
// in this process.
var ErrRunInProgress = errors.New("runner: another apply or rollback is in progress")

// BackupResult is returned by the backup operations.
type BackupResult struct {
	BackupID string `json:"backupId"`
	Items    int    `json:"items"`
}

// RunResult is returned by apply and rollback. Item-level failures are
// reported in Summary.Errors and never as an error.
type RunResult struct {
	RunID   string             `json:"runId,omitempty"`
	Summary model.Summary      `json:"summary"`
	Log     []string           `json:"log"`
	Items   []model.ItemResult `json:"items,omitempty"`
}

// Runner orchestrates runs. Mutations are issued one at a time and at most
// one apply or rollback runs per Runner.
type Runner struct {
	catalog  shopify.Client
	store    store.Store
	throttle throttle.Throttle
	grouper  *chain.Grouper
	now      func() time.Time

	runMu sync.Mutex

	sessMu      sync.Mutex
	sessions    map[string]*Session
	sessionSeq  uint64
	maxSessions int
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithMaxSessions bounds the number of in-memory run sessions kept.
func WithMaxSessions(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// New creates a Runner. A nil throttle disables pacing; a nil grouper uses
// the default chain vocabulary.
func New(catalog shopify.Client, st store.Store, th throttle.Throttle, grouper *chain.Grouper, opts ...Option) *Runner {
	if th == nil {
		th = throttle.None{}
	}
	if grouper == nil {
		grouper = chain.New(chain.Config{})
	}
	r := &Runner{
		catalog:     catalog,
		store:       st,
		throttle:    th,
		grouper:     grouper,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		maxSessions: 32,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// PreviewPercent fetches the catalog and computes percentage-mode rows.
func (r *Runner) PreviewPercent(ctx context.Context, pct float64) ([]model.PreviewRow, error) {
	if err := pricing.ValidatePct(pct); err != nil {
		return nil, err
	}
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}
	return pricing.PercentRows(variants, pct), nil
}

// PreviewChain fetches the catalog and computes compare-at corrections for
// qualifying chain products.
func (r *Runner) PreviewChain(ctx context.Context) ([]model.ChainPreviewRow, error) {
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}
	return r.grouper.Preview(variants), nil
}

// BackupPercent snapshots the untransformed values of every active variant.
func (r *Runner) BackupPercent(ctx context.Context, pct float64) (*BackupResult, error) {
	if err := pricing.ValidatePct(pct); err != nil {
		return nil, err
	}
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}
	return r.backup(ctx, model.ModePercent, &pct, variants)
}

// BackupChain snapshots every variant of the qualifying chain products.
func (r *Runner) BackupChain(ctx context.Context) (*BackupResult, error) {
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}
	return r.backup(ctx, model.ModeChain, nil, r.grouper.InScope(variants))
}

func (r *Runner) backup(ctx context.Context, mode model.Mode, pct *float64, variants []model.Variant) (*BackupResult, error) {
	if len(variants) == 0 {
		return nil, model.NewValidationError("items", "no in-scope variants to back up")
	}
	rec := &model.BackupRecord{
		Mode:      mode,
		CreatedAt: r.now().UTC(),
		Pct:       pct,
		Items:     make([]model.BackupItem, 0, len(variants)),
	}
	for _, v := range variants {
		rec.Items = append(rec.Items, model.SnapshotOf(v))
	}

	id, err := r.store.CreateBackup(ctx, rec)
	if err != nil {
		return nil, eris.Wrap(err, "runner: create backup")
	}
	zap.L().Info("backup created",
		zap.String("mode", string(mode)),
		zap.String("backup_id", id),
		zap.Int("items", len(rec.Items)),
	)
	return &BackupResult{BackupID: id, Items: len(rec.Items)}, nil
}

// ApplyPercent refetches the catalog and writes the percentage-mode prices
// and compare-at prices, one variant at a time.
func (r *Runner) ApplyPercent(ctx context.Context, pct float64, backupID string) (*RunResult, error) {
	if err := pricing.ValidatePct(pct); err != nil {
		return nil, err
	}
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	if err := r.requireBackup(ctx, backupID, model.ModePercent); err != nil {
		return nil, err
	}
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}

	rows := pricing.PercentRows(variants, pct)
	items := make([]mutation, 0, len(rows))
	for _, row := range rows {
		upd := shopify.VariantUpdate{Price: row.NewPrice.Ptr()}
		if row.NewCompare != nil {
			upd.CompareAtPrice = row.NewCompare.Ptr()
		}
		items = append(items, mutation{
			variantID: row.VariantID,
			price:     row.Price,
			update:    upd,
			okLine: fmt.Sprintf("price %s→%s, compare %s→%s",
				row.Price, row.NewPrice,
				model.FormatOptional(row.CompareAtPrice), model.FormatOptional(row.NewCompare)),
		})
	}

	log := &model.RunLog{Kind: model.RunKindPercentApply, Pct: &pct, BackupID: backupID}
	return r.execute(ctx, log, items)
}

// ApplyChain refetches the catalog and writes corrected compare-at prices
// for qualifying chain products. Rows without a baseline compare-at are skipped.
func (r *Runner) ApplyChain(ctx context.Context, backupID string) (*RunResult, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	if err := r.requireBackup(ctx, backupID, model.ModeChain); err != nil {
		return nil, err
	}
	variants, err := r.catalog.FetchActiveVariants(ctx)
	if err != nil {
		return nil, err
	}

	rows := r.grouper.Preview(variants)
	items := make([]mutation, 0, len(rows))
	for _, row := range rows {
		m := mutation{variantID: row.VariantID, price: row.Price}
		if row.NewCompare == nil {
			m.skipReason = string(row.Reason)
		} else {
			m.update = shopify.VariantUpdate{CompareAtPrice: row.NewCompare.Ptr()}
			m.okLine = fmt.Sprintf("%s -> %s", model.FormatOptional(row.OldCompare), model.FormatOptional(row.NewCompare))
		}
		items = append(items, m)
	}

	log := &model.RunLog{Kind: model.RunKindChainApply, BackupID: backupID}
	return r.execute(ctx, log, items)
}

// Rollback restores every item of a backup to its recorded price and
// compare-at price, overwriting any later change. A recorded null
// compare-at clears the remote value.
func (r *Runner) Rollback(ctx context.Context, backupID string) (*RunResult, error) {
	if backupID == "" {
		return nil, model.NewValidationError("backupId", "is required")
	}
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()

	rec, err := r.store.GetBackup(ctx, backupID)
	if err != nil {
		return nil, err
	}

	items := make([]mutation, 0, len(rec.Items))
	for _, it := range rec.Items {
		upd := shopify.VariantUpdate{Price: it.Price.Ptr()}
		if it.CompareAtPrice != nil {
			upd.CompareAtPrice = it.CompareAtPrice.Ptr()
		} else {
			upd.ClearCompareAt = true
		}
		items = append(items, mutation{
			variantID: it.VariantID,
			price:     it.Price,
			update:    upd,
			okLine: fmt.Sprintf("restored price %s, compare %s",
				it.Price, model.FormatOptional(it.CompareAtPrice)),
		})
	}

	log := &model.RunLog{Kind: model.RunKindRollback, Pct: rec.Pct, BackupID: rec.ID}
	return r.execute(ctx, log, items)
}

// requireBackup gates a mutation run on an existing backup of the same mode.
func (r *Runner) requireBackup(ctx context.Context, backupID string, mode model.Mode) error {
	if backupID == "" {
		return model.NewValidationError("backupId", "is required; create a backup first")
	}
	rec, err := r.store.GetBackup(ctx, backupID)
	if err != nil {
		return err
	}
	if rec.Mode != mode {
		return model.NewValidationError("backupId",
			fmt.Sprintf("backup %s was taken in %s mode, not %s", rec.ID, rec.Mode, mode))
	}
	return nil
}
