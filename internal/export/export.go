// Package export writes preview rows to CSV and XLSX files for offline review.
package export

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reprice/internal/model"
)

// Table is a header plus string rows, ready for any tabular format.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// PreviewTable lays out percentage-mode preview rows.
func PreviewTable(rows []model.PreviewRow) Table {
	t := Table{
		Sheet: "preview",
		Header: []string{
			"product_id", "product_title", "handle", "variant_id", "variant_title", "sku",
			"position", "price", "new_price", "compare_at_price", "new_compare",
		},
		Rows: make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			id(r.ProductID), r.ProductTitle, r.Handle, id(r.VariantID), r.VariantTitle, r.SKU,
			position(r.Position), r.Price.String(), r.NewPrice.String(),
			optional(r.CompareAtPrice), optional(r.NewCompare),
		})
	}
	return t
}

// ChainTable lays out chain-mode preview rows.
func ChainTable(rows []model.ChainPreviewRow) Table {
	t := Table{
		Sheet: "chain",
		Header: []string{
			"product_id", "product_title", "handle", "variant_id", "variant_title", "sku",
			"position", "price", "old_compare", "new_compare", "reason",
		},
		Rows: make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			id(r.ProductID), r.ProductTitle, r.Handle, id(r.VariantID), r.VariantTitle, r.SKU,
			position(r.Position), r.Price.String(),
			optional(r.OldCompare), optional(r.NewCompare), string(r.Reason),
		})
	}
	return t
}

// WriteFile writes t to path, choosing the format from the extension
// (.csv or .xlsx).
func WriteFile(path string, t Table) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		if err := WriteCSV(f, t); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		return eris.Wrapf(f.Close(), "export: close %s", path)
	case ".xlsx":
		return WriteXLSX(path, t)
	default:
		return eris.Errorf("export: unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

// optional renders an absent amount as an empty cell.
func optional(m *model.Money) string {
	if m == nil {
		return ""
	}
	return m.String()
}

func position(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
