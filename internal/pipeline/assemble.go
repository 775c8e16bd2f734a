package pipeline

import (
	"fmt"
	"time"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// SourceMetadata is attached to the assembled document.
type SourceMetadata struct {
	Duration time.Duration
}

// Assemble orders the deduplicated slides into the final document and
// re-checks the deduplicator's contract: strictly increasing
// representative frame indices and unique dedup keys. A violation is an
// *entity.AssemblyError, an internal bug rather than a normal failure.
// Zero slides (a video with no detected content) is a valid document.
func Assemble(slides []entity.Slide, meta SourceMetadata) (entity.Document, error) {
	keys := make(map[string]int, len(slides))
	for i, s := range slides {
		if i > 0 && slides[i-1].FrameIndex >= s.FrameIndex {
			return entity.Document{}, &entity.AssemblyError{
				Reason: fmt.Sprintf("slide %d frame index %d not after slide %d frame index %d",
					i, s.FrameIndex, i-1, slides[i-1].FrameIndex),
			}
		}
		if prev, dup := keys[s.DedupKey]; dup {
			return entity.Document{}, &entity.AssemblyError{
				Reason: fmt.Sprintf("slides %d and %d share dedup key %s", prev, i, s.DedupKey),
			}
		}
		keys[s.DedupKey] = i
	}

	return entity.Document{
		Slides:         slides,
		SourceDuration: meta.Duration,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
