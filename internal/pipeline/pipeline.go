package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/edugen/video2pdf-service/internal/domain/port"
)

// Config is threaded explicitly through a run; there is no ambient
// pipeline state, so concurrent runs with different policies are safe.
type Config struct {
	Workers             int
	QueueDepth          int
	InferenceTimeout    time.Duration
	SimilarityThreshold float64
}

// Stats reports how the run degraded, if at all. FailedFrames counts
// frames whose detection call failed (they contribute zero regions);
// FailedRegions counts regions whose extraction call failed.
type Stats struct {
	FramesSampled   int
	RegionsDetected int
	FailedFrames    int
	FailedRegions   int
}

// Pipeline turns a frame stream into an assembled document. Detection
// and extraction fan out over a bounded worker pool; a reorder buffer
// restores frame order in front of the sequential deduplicator.
type Pipeline struct {
	detector  port.RegionDetector
	extractor port.TextExtractor
	logger    *zap.Logger
	cfg       Config
}

func New(detector port.RegionDetector, extractor port.TextExtractor, logger *zap.Logger, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 2 * cfg.Workers
	}
	return &Pipeline{detector: detector, extractor: extractor, logger: logger, cfg: cfg}
}

// Run consumes the stream to exhaustion and returns the document. On
// cancellation or a fatal stream error no partial document is returned;
// per-frame and per-region inference failures are absorbed into Stats.
func (p *Pipeline) Run(ctx context.Context, frames port.FrameStream, meta SourceMetadata) (entity.Document, Stats, error) {
	defer frames.Close()

	var sampled, detected, failedFrames, failedRegions atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	frameCh := make(chan entity.Frame, p.cfg.QueueDepth)
	resultCh := make(chan FrameResult, p.cfg.QueueDepth)

	g.Go(func() error {
		defer close(frameCh)
		for {
			frame, err := frames.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			sampled.Add(1)
			select {
			case frameCh <- frame:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for frame := range frameCh {
				res := p.inferFrame(gctx, frame, &detected, &failedFrames, &failedRegions)
				select {
				case resultCh <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		workers.Wait()
		close(resultCh)
		return nil
	})

	dedup := NewDeduplicator(p.cfg.SimilarityThreshold)
	g.Go(func() error {
		buf := newReorderBuffer()
		for res := range resultCh {
			for _, ordered := range buf.push(res) {
				dedup.Observe(ordered)
			}
		}
		if n := buf.pending(); n != 0 {
			return &entity.AssemblyError{Reason: "reorder buffer drained with gaps in frame indices"}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return entity.Document{}, Stats{}, err
	}

	doc, err := Assemble(dedup.Flush(), meta)
	stats := Stats{
		FramesSampled:   int(sampled.Load()),
		RegionsDetected: int(detected.Load()),
		FailedFrames:    int(failedFrames.Load()),
		FailedRegions:   int(failedRegions.Load()),
	}
	if err != nil {
		return entity.Document{}, stats, err
	}
	return doc, stats, nil
}

// inferFrame runs detection and per-region extraction for one frame.
// Every failure here is absorbed: the frame keeps its slot in the
// ordered stream with whatever content survived.
func (p *Pipeline) inferFrame(ctx context.Context, frame entity.Frame, detected, failedFrames, failedRegions *atomic.Int64) FrameResult {
	regions, err := p.detect(ctx, frame)
	if err != nil {
		failedFrames.Add(1)
		p.logger.Warn("detection failed, frame contributes zero regions",
			zap.Int("frame", frame.Index),
			zap.Error(err),
		)
		return FrameResult{Frame: dropPixels(frame), DetectFailed: true}
	}
	detected.Add(int64(len(regions)))

	blocks := make([]entity.TextBlock, 0, len(regions))
	for _, region := range regions {
		block, err := p.extract(ctx, frame, region)
		if err != nil {
			failedRegions.Add(1)
			p.logger.Warn("extraction failed, region recorded as empty",
				zap.Int("frame", frame.Index),
				zap.Error(err),
			)
			block = entity.TextBlock{Region: region, Failed: true}
		}
		blocks = append(blocks, block)
	}
	return FrameResult{Frame: dropPixels(frame), Blocks: blocks}
}

func (p *Pipeline) detect(ctx context.Context, frame entity.Frame) ([]entity.Region, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
	defer cancel()
	regions, err := p.detector.Detect(callCtx, frame)
	if err != nil {
		return nil, &entity.InferenceError{
			Stage:      "detect",
			FrameIndex: frame.Index,
			Timeout:    errors.Is(err, context.DeadlineExceeded),
			Err:        err,
		}
	}
	return regions, nil
}

func (p *Pipeline) extract(ctx context.Context, frame entity.Frame, region entity.Region) (entity.TextBlock, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.InferenceTimeout)
	defer cancel()
	block, err := p.extractor.Extract(callCtx, frame, region)
	if err != nil {
		return entity.TextBlock{}, &entity.InferenceError{
			Stage:      "extract",
			FrameIndex: frame.Index,
			Timeout:    errors.Is(err, context.DeadlineExceeded),
			Err:        err,
		}
	}
	return block, nil
}

// dropPixels releases the frame's pixel buffer once inference is done;
// only the slide's representative image path survives to rendering.
func dropPixels(frame entity.Frame) entity.Frame {
	frame.JPEG = nil
	return frame
}
