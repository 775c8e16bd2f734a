package port

import (
	"context"
	"time"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
)

// SamplingPolicy configures how frames are pulled from the source video.
// When SceneThreshold > 0 the sampler emits frames on detected visual
// change instead of a fixed clock; MaxFrames is a hard cap either way.
type SamplingPolicy struct {
	IntervalSeconds float64
	SceneThreshold  float64
	MaxFrames       int
}

// FrameStream is a lazy, finite, non-restartable sequence of frames in
// index order. Next returns io.EOF when the stream is exhausted. Close
// releases the underlying video handle and is safe to call on any path,
// including early abort.
type FrameStream interface {
	Next(ctx context.Context) (entity.Frame, error)
	// Duration is the probed length of the source, known once the
	// stream is open.
	Duration() time.Duration
	Close() error
}

// FrameSampler opens a video and produces its frame stream. A source
// that cannot be opened or yields no frames at all fails with
// *entity.DecodeError.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, policy SamplingPolicy) (FrameStream, error)
}
