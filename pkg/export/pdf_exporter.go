package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	landscapeWidth = 277.0
	rowHeight      = 7.0
)

// PDFExporter lays a sheet out on landscape A4 pages, repeating the column
// header whenever the table breaks onto a new page.
type PDFExporter struct {
	Font string
}

func NewPDFExporter() *PDFExporter {
	return &PDFExporter{Font: "Helvetica"}
}

func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Columns) == 0 {
		return nil, ErrNoColumns
	}
	widths := columnWidths(sheet.Columns)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if sheet.Title != "" {
		pdf.SetFont(e.Font, "B", 14)
		pdf.CellFormat(0, 9, tr(sheet.Title), "", 1, "L", false, 0, "")
	}
	if len(sheet.Summary) > 0 {
		pdf.SetFont(e.Font, "", 10)
		for _, line := range sheet.Summary {
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(3)

	header := func() {
		pdf.SetFont(e.Font, "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, label := range sheet.labels() {
			pdf.CellFormat(widths[i], rowHeight+1, tr(label), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(e.Font, "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range sheet.Rows {
		if pdf.GetY()+rowHeight > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i, value := range sheet.record(row) {
			pdf.CellFormat(widths[i], rowHeight, tr(value), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths gives unsized columns an equal share of what the sized ones
// leave over.
func columnWidths(cols []Column) []float64 {
	widths := make([]float64, len(cols))
	fixed, flexible := 0.0, 0
	for i, col := range cols {
		widths[i] = col.Width
		if col.Width > 0 {
			fixed += col.Width
		} else {
			flexible++
		}
	}
	if flexible == 0 {
		return widths
	}
	share := (landscapeWidth - fixed) / float64(flexible)
	if share < 15 {
		share = 15
	}
	for i := range widths {
		if widths[i] <= 0 {
			widths[i] = share
		}
	}
	return widths
}
