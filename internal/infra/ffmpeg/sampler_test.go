package ffmpeg

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/edugen/video2pdf-service/internal/domain/port"
	"go.uber.org/zap"
)

func TestFrameStepFixedInterval(t *testing.T) {
	step := frameStep(2*time.Minute, 5, false, 24)
	assert.Equal(t, 5*time.Second, step)
}

func TestFrameStepSceneModeSpreadsDuration(t *testing.T) {
	step := frameStep(100*time.Second, 5, true, 20)
	assert.Equal(t, 5*time.Second, step)

	assert.Equal(t, time.Duration(0), frameStep(100*time.Second, 5, true, 0))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "5", formatFloat(5))
	assert.Equal(t, "2.5", formatFloat(2.5))
	assert.Equal(t, "0.3", formatFloat(0.3))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short  ", 400))
	long := ""
	for i := 0; i < 100; i++ {
		long += "0123456789"
	}
	got := tail(long, 40)
	assert.Len(t, got, 43)
	assert.Equal(t, "...", got[:3])
}

func TestSampleMissingFileIsDecodeError(t *testing.T) {
	s := NewSampler(zap.NewNop())
	_, err := s.Sample(context.Background(), "/nonexistent/video.mp4", port.SamplingPolicy{})

	var de *entity.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "/nonexistent/video.mp4", de.Path)
}

func TestFrameStreamClosedReturnsEOF(t *testing.T) {
	fs := &frameStream{paths: []string{"a.jpg"}, duration: time.Minute}
	require.NoError(t, fs.Close())

	_, err := fs.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameStreamHonorsContext(t *testing.T) {
	fs := &frameStream{paths: []string{"a.jpg"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fs.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
