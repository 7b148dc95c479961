package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/pkg/shopify"
)

// mutation is one planned variant write.
type mutation struct {
	variantID int64
	price     model.Money
	update    shopify.VariantUpdate
	okLine    string
	// skipReason, when set, skips the item without calling the catalog.
	skipReason string
}

// execute performs items in order, one at a time, pacing attempted updates
// with the throttle. Cancellation is checked between items; whatever was
// completed is still persisted.
func (r *Runner) execute(ctx context.Context, log *model.RunLog, items []mutation) (*RunResult, error) {
	log.StartedAt = r.now().UTC()
	log.Lines = make([]string, 0, len(items))
	results := make([]model.ItemResult, 0, len(items))

	zap.L().Info("run started",
		zap.String("kind", string(log.Kind)),
		zap.String("backup_id", log.BackupID),
		zap.Int("items", len(items)),
	)

	for i, m := range items {
		if ctx.Err() != nil {
			log.Cancelled = true
			log.Remaining = len(items) - i
			log.Lines = append(log.Lines, fmt.Sprintf("CANCELLED: %d items not attempted", log.Remaining))
			break
		}

		res := r.process(ctx, m)
		results = append(results, res)
		switch res.Status {
		case model.ItemUpdated:
			log.Updated++
			log.Lines = append(log.Lines, fmt.Sprintf("OK %d: %s", m.variantID, res.Detail))
		case model.ItemSkipped:
			log.Skipped++
			log.Lines = append(log.Lines, fmt.Sprintf("SKIP %d %s", m.variantID, res.Detail))
		case model.ItemError:
			log.Errors++
			log.Skipped++
			log.Lines = append(log.Lines, fmt.Sprintf("ERR %d: %s", m.variantID, res.Detail))
			zap.L().Warn("variant update failed",
				zap.String("kind", string(log.Kind)),
				zap.Int64("variant_id", m.variantID),
				zap.String("error", res.Detail),
			)
		}

		if res.Status != model.ItemSkipped {
			// Errors from Wait are cancellations; the next iteration records them.
			_ = r.throttle.Wait(ctx)
		}
	}
	log.FinishedAt = r.now().UTC()

	result := &RunResult{
		Summary: log.Summary(),
		Log:     log.Lines,
		Items:   results,
	}

	// Persist even after cancellation.
	id, err := r.store.SaveRunLog(context.WithoutCancel(ctx), log)
	if err != nil {
		zap.L().Error("save run log failed",
			zap.String("kind", string(log.Kind)),
			zap.String("backup_id", log.BackupID),
			zap.Error(err),
		)
	} else {
		result.RunID = id
	}

	zap.L().Info("run finished",
		zap.String("kind", string(log.Kind)),
		zap.String("run_id", result.RunID),
		zap.String("backup_id", log.BackupID),
		zap.Int("updated", log.Updated),
		zap.Int("skipped", log.Skipped),
		zap.Int("errors", log.Errors),
		zap.Bool("cancelled", log.Cancelled),
	)
	return result, nil
}

// process performs a single mutation and reports its outcome as a value.
func (r *Runner) process(ctx context.Context, m mutation) model.ItemResult {
	res := model.ItemResult{VariantID: m.variantID}
	switch {
	case m.skipReason != "":
		res.Status = model.ItemSkipped
		res.Detail = m.skipReason
		return res
	case m.price <= 0:
		res.Status = model.ItemSkipped
		res.Detail = "price<=0"
		return res
	}

	if err := r.catalog.UpdateVariant(ctx, m.variantID, m.update); err != nil {
		res.Status = model.ItemError
		res.Detail = err.Error()
		return res
	}
	res.Status = model.ItemUpdated
	res.Detail = m.okLine
	return res
}
