package certificate

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// PDFRenderer lays certificates out on a landscape A4 page.
type PDFRenderer struct {
	// Compress deflates page streams. Tests turn it off to read the text.
	Compress bool
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Compress: true}
}

func (r *PDFRenderer) Render(data Data) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetTitle("Certificado de Conclusão", true)
	pdf.SetCreationDate(data.CompletionDate)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Core fonts are cp1252; names and titles arrive as UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	line := func(style string, size, height float64, text string) {
		pdf.SetFont("Helvetica", style, size)
		pdf.CellFormat(0, height, tr(text), "", 1, "C", false, 0, "")
	}

	pdf.SetDrawColor(30, 64, 128)
	pdf.SetLineWidth(1.5)
	pdf.Rect(10, 10, 277, 190, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, 269, 182, "D")

	pdf.SetY(38)
	pdf.SetTextColor(30, 64, 128)
	line("B", 32, 16, "Certificado de Conclusão")
	pdf.Ln(10)

	pdf.SetTextColor(40, 40, 40)
	line("", 16, 10, "Certificamos que")
	line("B", 26, 14, data.StudentName)
	line("", 16, 10, "concluiu com êxito o curso")
	line("B", 22, 12, data.CourseName)
	pdf.Ln(4)
	line("", 14, 9, fmt.Sprintf("com carga horária de %d horas e nota %d%% na avaliação final.",
		data.CourseHours, data.QuizScore))

	pdf.SetY(170)
	line("", 12, 7, "Emitido em "+data.CompletionDate.Format("02/01/2006"))
	line("", 10, 6, "Código de validação: "+data.ValidationCode)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
