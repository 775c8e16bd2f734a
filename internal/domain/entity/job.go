package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ConversionJob tracks one video-to-PDF conversion end to end, including
// the degraded-run counters (frames/regions that failed non-fatally
// without aborting the run).
type ConversionJob struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	PDFKey        string
	Status        JobStatus
	SlideCount    int
	FrameCount    int
	FailedFrames  int
	FailedRegions int
	FileSize      int64
	VideoDuration float64
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewConversionJob(userID, videoKey string, fileSize int64, maxAttempts int) *ConversionJob {
	now := time.Now().UTC()
	return &ConversionJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *ConversionJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *ConversionJob) MarkCompleted(pdfKey string, slideCount, frameCount int, duration float64, failedFrames, failedRegions int) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.PDFKey = pdfKey
	j.SlideCount = slideCount
	j.FrameCount = frameCount
	j.VideoDuration = duration
	j.FailedFrames = failedFrames
	j.FailedRegions = failedRegions
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ConversionJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *ConversionJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
