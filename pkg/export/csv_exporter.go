package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter writes sheets as RFC 4180 CSV. Title and summary lines are
// left out so the output stays importable into spreadsheets as-is.
type CSVExporter struct {
	// Comma overrides the field delimiter when non-zero.
	Comma rune
}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Columns) == 0 {
		return nil, ErrNoColumns
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if e.Comma != 0 {
		w.Comma = e.Comma
	}
	if err := w.Write(sheet.labels()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range sheet.Rows {
		if err := w.Write(sheet.record(row)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
