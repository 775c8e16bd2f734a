package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/edugen/video2pdf-service/internal/domain/port"
	"github.com/edugen/video2pdf-service/internal/infra/config"
	"github.com/edugen/video2pdf-service/internal/infra/email"
	"github.com/edugen/video2pdf-service/internal/infra/ffmpeg"
	"github.com/edugen/video2pdf-service/internal/infra/groq"
	"github.com/edugen/video2pdf-service/internal/infra/metrics"
	miniostorage "github.com/edugen/video2pdf-service/internal/infra/minio"
	"github.com/edugen/video2pdf-service/internal/infra/pdf"
	"github.com/edugen/video2pdf-service/internal/infra/postgres"
	"github.com/edugen/video2pdf-service/internal/infra/rabbitmq"
	"github.com/edugen/video2pdf-service/internal/infra/tracing"
	"github.com/edugen/video2pdf-service/internal/infra/vision"
	"github.com/edugen/video2pdf-service/internal/pipeline"
	"github.com/edugen/video2pdf-service/internal/usecase"
	"github.com/edugen/video2pdf-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting edugen-video2pdf-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		PDFBucket:    cfg.MinIOPDFBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	sampler := ffmpeg.NewSampler(log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)
	renderer := pdf.NewRenderer(log)

	visionClient, err := vision.NewClient(ctx, vision.Config{
		CredentialsFile: cfg.GoogleCredentialsFile,
		MinConfidence:   cfg.DetectConfidence,
	}, log)
	fatalOnErr(err, "create vision client")
	defer visionClient.Close()

	var refiner port.TextRefiner
	if cfg.GroqAPIKey != "" {
		refiner = groq.NewRefiner(groq.Config{
			APIKey: cfg.GroqAPIKey,
			Model:  cfg.GroqModel,
		}, log)
	} else {
		log.Info("no groq api key configured, skipping text refinement")
	}

	// Frame-to-slide pipeline
	pipe := pipeline.New(visionClient, visionClient, log, pipeline.Config{
		Workers:             cfg.PipelineWorkers,
		InferenceTimeout:    time.Duration(cfg.InferenceTimeoutMs) * time.Millisecond,
		SimilarityThreshold: cfg.DedupSimilarity,
	})

	// Use case
	uc := usecase.NewConvertVideoUseCase(
		repo, storage, sampler, pipe,
		refiner, renderer,
		statusPub, dlqPub, notifier,
		log,
		usecase.ConvertVideoConfig{
			TempDir:    cfg.TempDir,
			MaxRetries: cfg.MaxRetries,
			Policy: port.SamplingPolicy{
				IntervalSeconds: cfg.SampleIntervalSeconds,
				SceneThreshold:  cfg.SceneThreshold,
				MaxFrames:       cfg.MaxFrames,
			},
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQConvertQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("edugen-video2pdf-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("edugen-video2pdf-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
