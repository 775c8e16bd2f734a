package entity

import "github.com/google/uuid"

// VideoConvertMessage is the inbound message from the video.convert queue.
type VideoConvertMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// ConversionStatusMessage is the outbound message published to the
// video.convert.status queue. FailedFrames/FailedRegions report partial
// degradation alongside a successful document.
type ConversionStatusMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	UserID        string    `json:"user_id"`
	Status        JobStatus `json:"status"`
	VideoKey      string    `json:"video_key"`
	PDFKey        string    `json:"pdf_key,omitempty"`
	SlideCount    int       `json:"slide_count,omitempty"`
	FrameCount    int       `json:"frame_count,omitempty"`
	FailedFrames  int       `json:"failed_frames,omitempty"`
	FailedRegions int       `json:"failed_regions,omitempty"`
	Duration      float64   `json:"duration_seconds,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Attempt       int       `json:"attempt"`
	MaxAttempts   int       `json:"max_attempts"`
}
