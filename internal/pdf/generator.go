package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/topodata/geoflow/internal/model"
	"github.com/topodata/geoflow/internal/workflow"
)

// Generator renders a step's structured payload into a printable preview.
// The workflow engine only supplies the payload; all layout lives here.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(doc model.StepDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(doc.Step.Label), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Projeto: %s", doc.ProjectTitle)), "", 1, "C", false, 0, "")
	if doc.ClientName != "" {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Cliente: %s", doc.ClientName)), "", 1, "C", false, 0, "")
	}
	if doc.Step.DocumentNumber != nil {
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Documento nº %s", *doc.Step.DocumentNumber)), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Emitido em %s", time.Now().Format("02.01.2006"))), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	switch doc.Step.Kind {
	case model.StepKindBudget:
		g.writeBudget(pdf, tr, doc.Step.Notes)
	case model.StepKindDocumentation:
		g.writeChecklist(pdf, tr, doc.Step.Notes)
	case model.StepKindPointControl:
		g.writePointControl(pdf, tr, doc.Step.Notes)
	default:
		g.writeNotes(pdf, tr, doc.Step.Notes)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeBudget(pdf *gofpdf.Fpdf, tr func(string) string, notes string) {
	items := workflow.DecodeBudgetItems(notes)

	headers := []string{"Descrição", "Qtd.", "Preço unit.", "Subtotal"}
	widths := []float64{90, 20, 30, 30}
	pdf.SetFont("Helvetica", "B", 10)
	for i, header := range headers {
		align := "L"
		if i > 0 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	total := 0.0
	for _, item := range items {
		subtotal := item.Qty * item.Price
		total += subtotal
		pdf.CellFormat(widths[0], 8, tr(item.Description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, fmt.Sprintf("%.2f", item.Qty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 8, fmt.Sprintf("%.2f", item.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 8, fmt.Sprintf("%.2f", subtotal), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("Total: %.2f", total)), "", 1, "R", false, 0, "")
}

func (g *Generator) writeChecklist(pdf *gofpdf.Fpdf, tr func(string) string, notes string) {
	checklist := workflow.DecodeChecklist(notes)
	labels := make([]string, 0, len(checklist))
	for label := range checklist {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	pdf.SetFont("Helvetica", "", 11)
	for _, label := range labels {
		mark := "[  ]"
		if checklist[label] {
			mark = "[x]"
		}
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("%s  %s", mark, label)), "", 1, "L", false, 0, "")
	}
}

func (g *Generator) writePointControl(pdf *gofpdf.Fpdf, tr func(string) string, notes string) {
	pc := workflow.DecodePointControl(notes)
	pdf.SetFont("Helvetica", "", 11)
	rows := []struct{ label, value string }{
		{"Marcos (M)", pc.M},
		{"Pontos (P)", pc.P},
		{"Vértices (V)", pc.V},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(45, 8, tr(row.label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(safeValue(row.value)), "1", 1, "L", false, 0, "")
	}
}

func (g *Generator) writeNotes(pdf *gofpdf.Fpdf, tr func(string) string, notes string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(safeValue(notes)), "", "L", false)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "—"
	}
	return value
}
