package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/reprice/internal/model"
)

func samplePreview() []model.PreviewRow {
	pos := 2
	return []model.PreviewRow{
		{
			Variant: model.Variant{
				ProductID: 1, ProductTitle: "Gold Rope, 18k", Handle: "gold-rope",
				VariantID: 11, VariantTitle: "18 inch", SKU: "GR-18", Position: &pos,
				Price: 1500, CompareAtPrice: model.Money(1790).Ptr(),
			},
			NewPrice:   1690,
			NewCompare: model.Money(1990).Ptr(),
		},
		{
			Variant:  model.Variant{ProductID: 1, ProductTitle: "Gold Rope, 18k", VariantID: 12, Price: 990},
			NewPrice: 1090,
		},
	}
}

func TestPreviewTable(t *testing.T) {
	tbl := PreviewTable(samplePreview())

	assert.Equal(t, "preview", tbl.Sheet)
	require.Len(t, tbl.Rows, 2)
	assert.Len(t, tbl.Rows[0], len(tbl.Header))
	assert.Equal(t, []string{"1", "Gold Rope, 18k", "gold-rope", "11", "18 inch", "GR-18", "2", "1500", "1690", "1790", "1990"}, tbl.Rows[0])
	assert.Equal(t, "", tbl.Rows[1][6])
	assert.Equal(t, "", tbl.Rows[1][9])
	assert.Equal(t, "", tbl.Rows[1][10])
}

func TestChainTable(t *testing.T) {
	tbl := ChainTable([]model.ChainPreviewRow{
		{ProductID: 5, VariantID: 52, Price: 1650, NewCompare: model.Money(1700).Ptr(), Reason: model.ChainReasonOK},
		{ProductID: 6, VariantID: 61, Price: 900, Reason: model.ChainReasonNoBaselineCompare},
	})

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "1700", tbl.Rows[0][9])
	assert.Equal(t, "ok", tbl.Rows[0][10])
	assert.Equal(t, "", tbl.Rows[1][9])
	assert.Equal(t, "no-baseline-compare", tbl.Rows[1][10])
}

func TestWriteCSV_QuotesFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, PreviewTable(samplePreview())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "product_id,product_title,handle"))
	assert.Contains(t, lines[1], `"Gold Rope, 18k"`)
}

func TestWriteFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.xlsx")
	require.NoError(t, WriteFile(path, PreviewTable(samplePreview())))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["preview"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "product_id", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "1690", sheet.Rows[1].Cells[8].String())
}

func TestWriteFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preview.CSV")
	require.NoError(t, WriteFile(path, PreviewTable(samplePreview())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "new_price")
}

func TestWriteFile_UnsupportedExtension(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "preview.json"), Table{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}
