package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/edugen/video2pdf-service/internal/domain/port"
	"github.com/edugen/video2pdf-service/internal/infra/metrics"
	"github.com/edugen/video2pdf-service/internal/pipeline"
)

// ConvertVideoUseCase drives one conversion job end to end: download
// the video, run the frame→slide pipeline, render the PDF, upload it,
// and report status. Per-item inference failures inside the pipeline
// degrade the output; only unreadable sources and internal invariant
// breaches fail the job.
type ConvertVideoUseCase struct {
	repo      port.JobRepository
	storage   port.MediaStorage
	sampler   port.FrameSampler
	pipe      *pipeline.Pipeline
	refiner   port.TextRefiner
	renderer  port.DocumentRenderer
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ConvertVideoConfig
}

type ConvertVideoConfig struct {
	TempDir    string
	MaxRetries int
	Policy     port.SamplingPolicy
}

func NewConvertVideoUseCase(
	repo port.JobRepository,
	storage port.MediaStorage,
	sampler port.FrameSampler,
	pipe *pipeline.Pipeline,
	refiner port.TextRefiner,
	renderer port.DocumentRenderer,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ConvertVideoConfig,
) *ConvertVideoUseCase {
	return &ConvertVideoUseCase{
		repo:      repo,
		storage:   storage,
		sampler:   sampler,
		pipe:      pipe,
		refiner:   refiner,
		renderer:  renderer,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *ConvertVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ConvertVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoConvertMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewConversionJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.convert(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ConvertVideoUseCase) convert(
	ctx context.Context,
	job *entity.ConversionJob,
	msg entity.VideoConvertMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from object storage
	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input.mp4")
	if err := uc.storage.DownloadVideo(dlCtx, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Sample frames and run the conversion core
	pipeStart := time.Now()
	pipeCtx, spanPipe := tracer.Start(ctx, "pipeline")
	doc, stats, err := uc.runPipeline(pipeCtx, videoPath)
	spanPipe.End()
	if err != nil {
		var decodeErr *entity.DecodeError
		var assemblyErr *entity.AssemblyError
		switch {
		case errors.As(err, &decodeErr):
			// An unreadable source will not improve on retry.
			log.Error("video undecodable", zap.Error(err))
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "decode: "+err.Error())
		case errors.As(err, &assemblyErr):
			log.Error("pipeline invariant breach", zap.Error(err))
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "assembly: "+err.Error())
		default:
			log.Error("pipeline failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "pipeline: "+err.Error(), log)
		}
	}
	metrics.JobProcessingDuration.WithLabelValues("pipeline").Observe(time.Since(pipeStart).Seconds())
	metrics.FramesSampledTotal.Add(float64(stats.FramesSampled))
	metrics.RegionsDetectedTotal.Add(float64(stats.RegionsDetected))
	metrics.SlidesEmittedTotal.Add(float64(len(doc.Slides)))
	metrics.InferenceFailuresTotal.WithLabelValues("detect").Add(float64(stats.FailedFrames))
	metrics.InferenceFailuresTotal.WithLabelValues("extract").Add(float64(stats.FailedRegions))

	// Optional text cleanup pass
	if uc.refiner != nil {
		refCtx, spanRef := tracer.Start(ctx, "refine_text")
		uc.refineSlides(refCtx, doc.Slides, log)
		spanRef.End()
	}

	// Render PDF
	renderStart := time.Now()
	renderCtx, spanRender := tracer.Start(ctx, "render_pdf")
	pdfBytes, err := uc.renderer.Render(renderCtx, doc)
	spanRender.End()
	if err != nil {
		log.Error("pdf rendering failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "render_pdf: "+err.Error(), log)
	}
	metrics.JobProcessingDuration.WithLabelValues("render").Observe(time.Since(renderStart).Seconds())

	// Upload PDF
	upStart := time.Now()
	upCtx, spanUp := tracer.Start(ctx, "upload_pdf")
	pdfKey := fmt.Sprintf("%s/lecture_%s.pdf", msg.UserID, job.ID.String())
	if err := uc.storage.UploadPDF(upCtx, pdfKey, bytes.NewReader(pdfBytes), int64(len(pdfBytes))); err != nil {
		spanUp.End()
		log.Error("pdf upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_pdf: "+err.Error(), log)
	}
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(pdfKey, len(doc.Slides), stats.FramesSampled,
		doc.SourceDuration.Seconds(), stats.FailedFrames, stats.FailedRegions)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed",
		zap.Int("slide_count", len(doc.Slides)),
		zap.Int("frame_count", stats.FramesSampled),
		zap.Int("failed_frames", stats.FailedFrames),
		zap.Int("failed_regions", stats.FailedRegions),
		zap.Float64("duration_secs", doc.SourceDuration.Seconds()),
		zap.String("pdf_key", pdfKey),
	)

	return nil
}

func (uc *ConvertVideoUseCase) runPipeline(ctx context.Context, videoPath string) (entity.Document, pipeline.Stats, error) {
	stream, err := uc.sampler.Sample(ctx, videoPath, uc.cfg.Policy)
	if err != nil {
		return entity.Document{}, pipeline.Stats{}, err
	}
	return uc.pipe.Run(ctx, stream, pipeline.SourceMetadata{Duration: stream.Duration()})
}

// refineSlides rewrites each slide's text through the refiner, keeping
// the raw OCR text whenever a call fails.
func (uc *ConvertVideoUseCase) refineSlides(ctx context.Context, slides []entity.Slide, log *zap.Logger) {
	for i := range slides {
		if slides[i].Text == "" {
			continue
		}
		refined, err := uc.refiner.Refine(ctx, slides[i].Text)
		if err != nil {
			log.Warn("text refinement failed, keeping raw OCR text",
				zap.Int("slide", i), zap.Error(err))
			continue
		}
		if refined != "" {
			slides[i].Text = refined
		}
	}
}

func (uc *ConvertVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.ConversionJob,
	msg entity.VideoConvertMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ConvertVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.ConversionJob,
	msg entity.VideoConvertMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *ConvertVideoUseCase) publishStatus(ctx context.Context, job *entity.ConversionJob, log *zap.Logger) {
	statusMsg := entity.ConversionStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		VideoKey:      job.VideoKey,
		PDFKey:        job.PDFKey,
		SlideCount:    job.SlideCount,
		FrameCount:    job.FrameCount,
		FailedFrames:  job.FailedFrames,
		FailedRegions: job.FailedRegions,
		Duration:      job.VideoDuration,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
