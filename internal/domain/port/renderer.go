package port

import (
	"context"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// DocumentRenderer serializes an assembled document into PDF bytes.
type DocumentRenderer interface {
	Render(ctx context.Context, doc entity.Document) ([]byte, error)
}
