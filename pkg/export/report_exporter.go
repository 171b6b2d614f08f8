package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Field is one labelled value inside a report section.
type Field struct {
	Label string
	Value string
}

// Section is a titled block of a report: labelled fields, an optional table,
// or both.
type Section struct {
	Title  string
	Fields []Field
	Table  *Dataset
}

// Report is a multi-section document rendered to PDF.
type Report struct {
	Title    string
	Subtitle string
	Sections []Section
}

// ReportExporter renders sectioned reports into PDF.
type ReportExporter struct{}

// NewReportExporter constructs a report exporter.
func NewReportExporter() *ReportExporter {
	return &ReportExporter{}
}

// Render creates the PDF document.
func (e *ReportExporter) Render(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 15, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, report.Title, "", 1, "C", false, 0, "")
	if report.Subtitle != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 7, report.Subtitle, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for _, section := range report.Sections {
		e.renderSection(pdf, section)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *ReportExporter) renderSection(pdf *gofpdf.Fpdf, section Section) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(235, 239, 245)
	pdf.CellFormat(0, 8, section.Title, "", 1, "L", true, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "", 10)
	for _, field := range section.Fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 6, field.Label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, field.Value, "", "L", false)
	}

	if section.Table != nil && len(section.Table.Headers) > 0 {
		pdf.Ln(1)
		colWidth := 186.0 / float64(len(section.Table.Headers))
		pdf.SetFont("Arial", "B", 9)
		for _, header := range section.Table.Headers {
			pdf.CellFormat(colWidth, 7, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Table.Rows {
			for _, header := range section.Table.Headers {
				pdf.CellFormat(colWidth, 6, row[header], "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}
	pdf.Ln(4)
}
