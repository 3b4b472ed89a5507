package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/samwel-gachiri/agribackup-sub003/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders the due diligence statement for a batch: identity,
// classification, component breakdown and open recommendations.
func (g *Generator) Generate(doc model.DDSDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, "Due Diligence Statement", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", doc.GeneratedAt.Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	g.sectionTitle(pdf, "Batch")
	g.keyValue(pdf, "Batch ID", doc.Batch.ID.String())
	g.keyValue(pdf, "Commodity", doc.Batch.CommodityType)
	g.keyValue(pdf, "Country of production", doc.Batch.CountryCode)
	g.keyValue(pdf, "Quantity", fmt.Sprintf("%s kg", doc.Batch.QuantityKg.String()))
	pdf.Ln(2)

	g.sectionTitle(pdf, "Operator")
	g.keyValue(pdf, "Supplier", doc.Supplier.Name)
	g.keyValue(pdf, "Type", doc.Supplier.Type)
	pdf.Ln(2)

	g.sectionTitle(pdf, "Risk Classification")
	g.keyValue(pdf, "Overall score", fmt.Sprintf("%.2f", doc.Assessment.OverallScore))
	g.keyValue(pdf, "Risk level", string(doc.Assessment.RiskLevel))
	g.keyValue(pdf, "Assessed at", doc.Assessment.AssessedAt.Format(time.RFC3339))
	pdf.Ln(2)

	g.sectionTitle(pdf, "Component Breakdown")
	headers := []string{"Component", "Score", "Level", "Justification"}
	widths := []float64{35, 18, 22, 105}
	g.tableRow(pdf, headers, widths, true)
	for _, c := range doc.Assessment.Components {
		row := []string{c.Name, fmt.Sprintf("%.2f", c.Score), string(c.Level), c.Justification}
		g.tableRow(pdf, row, widths, false)
	}
	pdf.Ln(4)

	if len(doc.Assessment.Recommendations) > 0 {
		g.sectionTitle(pdf, "Recommendations")
		pdf.SetFont(g.fontName, "", 10)
		for _, rec := range doc.Assessment.Recommendations {
			pdf.CellFormat(5, 6, "-", "", 0, "L", false, 0, "")
			pdf.MultiCell(0, 6, rec, "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func (g *Generator) keyValue(pdf *gofpdf.Fpdf, key, value string) {
	pdf.SetFont(g.fontName, "B", 10)
	pdf.CellFormat(50, 6, key, "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
}

func (g *Generator) tableRow(pdf *gofpdf.Fpdf, cells []string, widths []float64, header bool) {
	if header {
		pdf.SetFont(g.fontName, "B", 9)
	} else {
		pdf.SetFont(g.fontName, "", 9)
	}
	for i, cell := range cells {
		align := "L"
		if i == 1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, cell, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}
