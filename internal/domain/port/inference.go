package port

import (
	"context"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// RegionDetector finds content regions in a single frame. Regions below
// the adapter's confidence threshold are discarded here, not downstream.
// Calls are independent per frame and safe for concurrent use.
type RegionDetector interface {
	Detect(ctx context.Context, frame entity.Frame) ([]entity.Region, error)
}

// TextExtractor runs OCR over one detected region of a frame. An empty
// recognition is a valid TextBlock with empty text, not an error.
type TextExtractor interface {
	Extract(ctx context.Context, frame entity.Frame, region entity.Region) (entity.TextBlock, error)
}

// TextRefiner optionally reorganizes and corrects OCR text for one slide.
// Failures are non-fatal; callers fall back to the raw text.
type TextRefiner interface {
	Refine(ctx context.Context, text string) (string, error)
}
