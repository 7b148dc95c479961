package export

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// WriteCSV writes the header and rows of t as comma-separated values.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "csv: write rows")
	}
	return nil
}
