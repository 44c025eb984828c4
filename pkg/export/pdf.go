package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 277.0 // A4 landscape minus margins

// RenderPDF draws the table on landscape A4 pages with a repeated header row.
func RenderPDF(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	colWidth := pageWidth / float64(len(table.Columns))

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, label := range table.labels() {
			pdf.CellFormat(colWidth, 7, tr(label), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if table.Title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(table.Title), "", 1, "L", false, 0, "")
		}
		header()
	})
	pdf.AddPage()

	row := func(values map[string]string, style string) {
		pdf.SetFont("Arial", style, 9)
		for _, col := range table.Columns {
			align := col.Align
			if align == "" {
				align = "L"
			}
			pdf.CellFormat(colWidth, 6, tr(values[col.Key]), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	for _, values := range table.Rows {
		row(values, "")
	}
	if len(table.Footer) > 0 {
		row(table.Footer, "B")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
