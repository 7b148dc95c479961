package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX saves t as a single-sheet workbook at path.
func WriteXLSX(path string, t Table) error {
	f := xlsx.NewFile()
	name := t.Sheet
	if name == "" {
		name = "Sheet1"
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}

	addRow(sheet, t.Header)
	for _, r := range t.Rows {
		addRow(sheet, r)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "xlsx: save file")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}
