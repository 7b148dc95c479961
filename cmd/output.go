package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/sells-group/reprice/internal/export"
	"github.com/sells-group/reprice/internal/model"
	"github.com/sells-group/reprice/internal/runner"
)

// writeJSONOut writes v as indented JSON.
func writeJSONOut(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatPreviewRows writes a tabular percentage preview to w.
func formatPreviewRows(out io.Writer, rows []model.PreviewRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VARIANT\tPRODUCT\tTITLE\tPRICE\tNEW_PRICE\tCOMPARE\tNEW_COMPARE")
	_, _ = fmt.Fprintln(w, "-------\t-------\t-----\t-----\t---------\t-------\t-----------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.VariantID,
			truncate(r.ProductTitle, 30),
			truncate(r.VariantTitle, 20),
			r.Price,
			r.NewPrice,
			model.FormatOptional(r.CompareAtPrice),
			model.FormatOptional(r.NewCompare),
		)
	}
	_ = w.Flush()
}

// formatChainRows writes a tabular chain preview to w.
func formatChainRows(out io.Writer, rows []model.ChainPreviewRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VARIANT\tPRODUCT\tTITLE\tPOS\tPRICE\tOLD_COMPARE\tNEW_COMPARE\tREASON")
	_, _ = fmt.Fprintln(w, "-------\t-------\t-----\t---\t-----\t-----------\t-----------\t------")
	for _, r := range rows {
		pos := "-"
		if r.Position != nil {
			pos = strconv.Itoa(*r.Position)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.VariantID,
			truncate(r.ProductTitle, 30),
			truncate(r.VariantTitle, 20),
			pos,
			r.Price,
			model.FormatOptional(r.OldCompare),
			model.FormatOptional(r.NewCompare),
			r.Reason,
		)
	}
	_ = w.Flush()
}

// formatRunResult writes the log lines of an apply or rollback followed by
// its summary.
func formatRunResult(out io.Writer, res *runner.RunResult) {
	for _, line := range res.Log {
		_, _ = fmt.Fprintln(out, line)
	}
	s := res.Summary
	_, _ = fmt.Fprintf(out, "\nupdated=%d skipped=%d errors=%d", s.Updated, s.Skipped, s.Errors)
	if s.Cancelled {
		_, _ = fmt.Fprintf(out, " remaining=%d (cancelled)", s.Remaining)
	}
	_, _ = fmt.Fprintln(out)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(out, "run log: %s\n", res.RunID)
	}
}

// exportTable writes t to path when path is set.
func exportTable(path string, t export.Table) error {
	if path == "" {
		return nil
	}
	if err := export.WriteFile(path, t); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", len(t.Rows), path)
	return nil
}

// truncate shortens s to at most n runes for table display.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
