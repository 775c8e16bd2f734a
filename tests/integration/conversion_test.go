package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/edugen/video2pdf-service/internal/domain/entity"
	"github.com/edugen/video2pdf-service/internal/domain/port"
	"github.com/edugen/video2pdf-service/internal/infra/email"
	"github.com/edugen/video2pdf-service/internal/infra/ffmpeg"
	miniostorage "github.com/edugen/video2pdf-service/internal/infra/minio"
	"github.com/edugen/video2pdf-service/internal/infra/pdf"
	"github.com/edugen/video2pdf-service/internal/infra/postgres"
	"github.com/edugen/video2pdf-service/internal/infra/rabbitmq"
	"github.com/edugen/video2pdf-service/internal/pipeline"
	"github.com/edugen/video2pdf-service/internal/usecase"
	"github.com/edugen/video2pdf-service/pkg/logger"
	"go.uber.org/zap"
)

// fixedDetector and fixedExtractor stand in for the Vision backend so
// the end-to-end path runs without GCP credentials: one full-frame
// region per frame, one constant recognized text.
type fixedDetector struct{}

func (fixedDetector) Detect(ctx context.Context, f entity.Frame) ([]entity.Region, error) {
	return []entity.Region{{FrameIndex: f.Index, Width: f.Width, Height: f.Height, Confidence: 0.99}}, nil
}

type fixedExtractor struct{}

func (fixedExtractor) Extract(ctx context.Context, f entity.Frame, r entity.Region) (entity.TextBlock, error) {
	return entity.TextBlock{Region: r, Text: "Test pattern slide content", Confidence: 0.99}, nil
}

func TestConvertVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UseSSL:       false,
		UploadBucket: "uploads",
		PDFBucket:    "documents",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Upload test video to MinIO
	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=10:size=640x360:rate=1 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "edugen.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.convert.dlq")

	// Setup DB pool
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Setup use case
	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(pool)
	sampler := ffmpeg.NewSampler(log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)
	renderer := pdf.NewRenderer(log)

	pipe := pipeline.New(fixedDetector{}, fixedExtractor{}, zap.NewNop(), pipeline.Config{
		Workers:             2,
		InferenceTimeout:    5 * time.Second,
		SimilarityThreshold: 0.82,
	})

	uc := usecase.NewConvertVideoUseCase(
		repo, storage, sampler, pipe,
		nil, renderer,
		statusPub, dlqPub, notifier,
		log,
		usecase.ConvertVideoConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			Policy:     port.SamplingPolicy{IntervalSeconds: 2, MaxFrames: 20},
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.convert",
		Exchange:    "edugen.video",
		DLQ:         "video.convert.dlq",
		StatusQueue: "video.convert.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	// Start consumer in background
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Publish conversion message
	jobID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	convertMsg := entity.VideoConvertMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
	}
	msgBody, err := json.Marshal(convertMsg)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"edugen.video",
		"video.convert",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait for status message
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("video.convert.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.ConversionStatusMessage
	select {
	case delivery := <-statusMsgs:
		err = json.Unmarshal(delivery.Body, &statusMsg)
		require.NoError(t, err)
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	// Assert status
	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Greater(t, statusMsg.FrameCount, 0)
	assert.Greater(t, statusMsg.SlideCount, 0)
	assert.NotEmpty(t, statusMsg.PDFKey)

	// Verify PDF exists in MinIO and is well formed
	pdfObj, err := minioClient.GetObject(ctx, "documents", statusMsg.PDFKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	var pdfBuf bytes.Buffer
	_, err = pdfBuf.ReadFrom(pdfObj)
	require.NoError(t, err)
	require.Greater(t, pdfBuf.Len(), 4)
	assert.Equal(t, "%PDF", pdfBuf.String()[:4])

	// Verify job record in database
	var dbStatus string
	var dbSlideCount int
	err = pool.QueryRow(ctx,
		"SELECT status, slide_count FROM conversion_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbSlideCount)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, statusMsg.SlideCount, dbSlideCount)

	consumerCancel()

	t.Logf("Test passed: %d frames, %d slides, PDF at %s", statusMsg.FrameCount, statusMsg.SlideCount, statusMsg.PDFKey)
}

func TestConvertVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Start PostgreSQL
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// MinIO (no video upload needed for this test)
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UseSSL:       false,
		UploadBucket: "uploads",
		PDFBucket:    "documents",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Setup
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logger.New("debug")
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "edugen.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.convert.dlq")

	repo := postgres.NewJobRepository(pool)
	sampler := ffmpeg.NewSampler(log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)
	renderer := pdf.NewRenderer(log)

	pipe := pipeline.New(fixedDetector{}, fixedExtractor{}, zap.NewNop(), pipeline.Config{
		Workers:             2,
		InferenceTimeout:    5 * time.Second,
		SimilarityThreshold: 0.82,
	})

	uc := usecase.NewConvertVideoUseCase(
		repo, storage, sampler, pipe,
		nil, renderer,
		statusPub, dlqPub, notifier,
		log,
		usecase.ConvertVideoConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			Policy:     port.SamplingPolicy{IntervalSeconds: 2},
		},
	)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.convert",
		Exchange:    "edugen.video",
		DLQ:         "video.convert.dlq",
		StatusQueue: "video.convert.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()
	time.Sleep(500 * time.Millisecond)

	// Publish malformed message
	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"edugen.video",
		"video.convert",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        []byte(`{invalid json`),
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait and verify message landed in DLQ
	time.Sleep(2 * time.Second)

	dlqCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	dlqMsg, ok, err := dlqCh.Get("video.convert.dlq", true)
	require.NoError(t, err)
	assert.True(t, ok, "malformed message should be in DLQ")
	assert.Equal(t, `{invalid json`, string(dlqMsg.Body))

	consumerCancel()
	t.Log("Test passed: malformed message sent to DLQ")
}
