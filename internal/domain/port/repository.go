package port

import (
	"context"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.ConversionJob) error
	Update(ctx context.Context, job *entity.ConversionJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ConversionJob, error)
}
