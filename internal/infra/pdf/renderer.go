package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// Renderer serializes a document to PDF: one page per slide, the
// slide's text followed by its representative frame image.
type Renderer struct {
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	return &Renderer{logger: logger}
}

func (r *Renderer) Render(ctx context.Context, doc entity.Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Lecture slides", false)
	pdf.SetCreator("edugen video2pdf", false)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for i, slide := range doc.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("Slide %d — %s", i+1, formatOffset(slide.Timestamp))), "", 1, "L", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Helvetica", "", 12)
		pdf.MultiCell(0, 6, tr(slide.Text), "", "L", false)
		pdf.Ln(6)

		if err := r.placeImage(pdf, slide, i); err != nil {
			// A missing or corrupt frame image degrades the page, not
			// the run. fpdf errors are sticky, so clear before moving on.
			pdf.ClearError()
			r.logger.Warn("slide image skipped",
				zap.Int("slide", i),
				zap.String("path", slide.ImagePath),
				zap.Error(err),
			)
		}
	}

	if pdf.PageCount() == 0 {
		// A contentless video still yields a well-formed, single-page
		// document so the caller gets bytes, not an error.
		pdf.AddPage()
		pdf.SetFont("Helvetica", "I", 12)
		pdf.MultiCell(0, 6, "No slide content was detected in this video.", "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) placeImage(pdf *fpdf.Fpdf, slide entity.Slide, idx int) error {
	if slide.ImagePath == "" {
		return nil
	}
	f, err := os.Open(slide.ImagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	name := fmt.Sprintf("slide-%d", idx)
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "JPG"}, f)
	if pdf.Err() {
		return fmt.Errorf("register image: %w", pdf.Error())
	}
	pdf.ImageOptions(name, 10, pdf.GetY(), 180, 0, true, fpdf.ImageOptions{ImageType: "JPG"}, 0, "")
	if pdf.Err() {
		return fmt.Errorf("place image: %w", pdf.Error())
	}
	return nil
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
