// Package render turns summary text into PDF and audio attachments.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// PDFRenderer lays out markdown-flavoured summary text on Letter pages.
type PDFRenderer struct {
	now func() time.Time
}

// NewPDFRenderer creates a renderer. A nil clock uses UTC wall time.
func NewPDFRenderer(now func() time.Time) *PDFRenderer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PDFRenderer{now: now}
}

// RenderPDF returns a PDF document containing title, a generation date and text.
func (r *PDFRenderer) RenderPDF(text, title string) ([]byte, error) {
	pdf := r.layout(text, title)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) layout(text, title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.SetTitle(title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(26, 26, 26)
	pdf.MultiCell(0, 30, tr(title), "", "C", false)

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 20, tr("Generated on "+r.now().Format("January 02, 2006 at 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(24)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			pdf.Ln(7)
		case strings.HasPrefix(line, "---"):
			pdf.Ln(14)
		case strings.HasPrefix(line, "#"):
			pdf.Ln(8)
			pdf.SetFont("Helvetica", "B", 14)
			pdf.SetTextColor(33, 150, 243)
			pdf.MultiCell(0, 18, tr(strings.TrimSpace(strings.TrimLeft(line, "#"))), "", "L", false)
			pdf.Ln(4)
		case len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**"):
			pdf.SetFont("Helvetica", "B", 11)
			pdf.SetTextColor(51, 51, 51)
			pdf.MultiCell(0, 16, tr(strings.Trim(line, "*")), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetTextColor(51, 51, 51)
			pdf.MultiCell(0, 16, tr(strings.ReplaceAll(line, "**", "")), "", "L", false)
			pdf.Ln(4)
		}
	}
	return pdf
}
