package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"clockledger/internal/domain"
)

// PDFRenderer renders the ledger report as an A4 PDF.
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer { return &PDFRenderer{} }

func (r *PDFRenderer) Render(data *Data) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Ledger Report - %s", data.User.DisplayName()), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", data.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	r.sectionTitle(pdf, "Clock Records")
	r.tableHeader(pdf, []string{"Date", "Clock In", "Clock Out", "Hours"}, []float64{40, 40, 40, 30})
	pdf.SetFont("Helvetica", "", 9)
	for _, sess := range data.Sessions {
		start := sess.StartAt.In(data.Location)
		out := "-"
		hours := "-"
		if sess.EndAt != nil {
			out = sess.EndAt.In(data.Location).Format("15:04")
			hours = fmt.Sprintf("%.2f", sess.Duration.Hours())
		}
		pdf.CellFormat(40, 6, start.Format(domain.DateLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, start.Format("15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, out, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, hours, "1", 1, "R", false, 0, "")
	}
	for _, day := range data.OffDays {
		pdf.CellFormat(40, 6, day.Date, "1", 0, "L", false, 0, "")
		pdf.CellFormat(110, 6, "off day", "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	r.sectionTitle(pdf, "Claims")
	r.tableHeader(pdf, []string{"Date", "Type", "Amount", "Evidence"}, []float64{35, 45, 30, 40})
	pdf.SetFont("Helvetica", "", 9)
	for _, claim := range data.Claims {
		kind := claim.Kind
		if claim.Description != "" {
			kind = fmt.Sprintf("%s (%s)", claim.Kind, claim.Description)
		}
		pdf.CellFormat(35, 6, claim.CreatedAt.In(data.Location).Format(domain.DateLayout), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, kind, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, claim.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, claim.EvidenceRef, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	r.sectionTitle(pdf, "Summary")
	pdf.SetFont("Helvetica", "", 10)
	summary := [][2]string{
		{"Monthly salary", "RM " + data.User.MonthlySalary.StringFixed(2)},
		{"Hourly rate", "RM " + data.HourlyRate.StringFixed(2)},
		{"Total hours", fmt.Sprintf("%.2f", data.User.WorkedTotal.Hours())},
		{"Gross pay", "RM " + data.GrossPay.StringFixed(2)},
		{"Topups", "RM " + data.TotalTopups.StringFixed(2)},
		{"Claims", "RM " + data.TotalClaims.StringFixed(2)},
		{"Balance", "RM " + data.User.Balance.StringFixed(2)},
	}
	for _, row := range summary {
		pdf.CellFormat(60, 7, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, row[1], "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func (r *PDFRenderer) tableHeader(pdf *fpdf.Fpdf, labels []string, widths []float64) {
	pdf.SetFont("Helvetica", "B", 9)
	for i, label := range labels {
		ln := 0
		if i == len(labels)-1 {
			ln = 1
		}
		pdf.CellFormat(widths[i], 6, label, "1", ln, "L", false, 0, "")
	}
}

var _ Renderer = (*PDFRenderer)(nil)
