package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/edugen/video2pdf-service/internal/domain/port"
)

const defaultIntervalSeconds = 5.0

// Sampler extracts still frames from a video with ffmpeg/ffprobe
// subprocesses. Frames land as JPEGs next to the source; the returned
// stream loads one frame's pixels at a time so memory stays bounded on
// long videos.
type Sampler struct {
	logger *zap.Logger
}

func NewSampler(logger *zap.Logger) *Sampler {
	return &Sampler{logger: logger}
}

func (s *Sampler) Sample(ctx context.Context, videoPath string, policy port.SamplingPolicy) (port.FrameStream, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &entity.DecodeError{Path: videoPath, Reason: "video file not readable", Err: err}
	}

	duration, err := probeDuration(ctx, videoPath)
	if err != nil {
		// ffprobe refusing the container is the canonical unreadable
		// source: no stage downstream can do anything with it.
		return nil, &entity.DecodeError{Path: videoPath, Reason: "container/codec could not be opened", Err: err}
	}

	framesDir := filepath.Join(filepath.Dir(videoPath), "frames")
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return nil, fmt.Errorf("create frames dir %s: %w", framesDir, err)
	}

	interval := policy.IntervalSeconds
	if interval <= 0 {
		interval = defaultIntervalSeconds
	}

	args := []string{"-i", videoPath}
	if policy.SceneThreshold > 0 {
		args = append(args,
			"-vf", fmt.Sprintf("select='gt(scene,%s)'", formatFloat(policy.SceneThreshold)),
			"-vsync", "vfr",
		)
	} else {
		args = append(args, "-vf", fmt.Sprintf("fps=1/%s", formatFloat(interval)))
	}
	if policy.MaxFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(policy.MaxFrames))
	}
	args = append(args, "-y", filepath.Join(framesDir, "frame_%06d.jpg"))

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.DecodeError{
			Path:   videoPath,
			Reason: "ffmpeg frame extraction failed: " + tail(string(output), 400),
			Err:    err,
		}
	}

	paths, err := filepath.Glob(filepath.Join(framesDir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, &entity.DecodeError{Path: videoPath, Reason: "no frames could be extracted"}
	}

	s.logger.Info("frames sampled",
		zap.Int("count", len(paths)),
		zap.Float64("video_duration", duration.Seconds()),
		zap.Bool("scene_change", policy.SceneThreshold > 0),
	)

	return &frameStream{
		paths:    paths,
		duration: duration,
		stepHint: frameStep(duration, interval, policy.SceneThreshold > 0, len(paths)),
	}, nil
}

// frameStep is the timestamp spacing between emitted frames. Fixed
// sampling knows it exactly; scene-change sampling spaces frames evenly
// over the probed duration as an approximation.
func frameStep(duration time.Duration, interval float64, sceneMode bool, count int) time.Duration {
	if !sceneMode {
		return time.Duration(interval * float64(time.Second))
	}
	if count == 0 {
		return 0
	}
	return duration / time.Duration(count)
}

type frameStream struct {
	paths    []string
	duration time.Duration
	stepHint time.Duration
	pos      int
	closed   bool
}

func (fs *frameStream) Next(ctx context.Context) (entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return entity.Frame{}, err
	}
	if fs.closed || fs.pos >= len(fs.paths) {
		return entity.Frame{}, io.EOF
	}

	path := fs.paths[fs.pos]
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Frame{}, fmt.Errorf("read frame %s: %w", path, err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entity.Frame{}, fmt.Errorf("decode frame header %s: %w", path, err)
	}

	frame := entity.Frame{
		Index:     fs.pos,
		Timestamp: time.Duration(fs.pos) * fs.stepHint,
		Path:      path,
		JPEG:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}
	fs.pos++
	return frame, nil
}

func (fs *frameStream) Duration() time.Duration { return fs.duration }

func (fs *frameStream) Close() error {
	fs.closed = true
	return nil
}

func probeDuration(ctx context.Context, videoPath string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	seconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", durationStr, err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
