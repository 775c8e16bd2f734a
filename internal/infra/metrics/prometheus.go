package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edugen_jobs_processed_total",
		Help: "Total number of conversion jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "edugen_job_processing_duration_seconds",
		Help:    "Duration of the video-to-PDF pipeline, by stage",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edugen_frames_sampled_total",
		Help: "Total number of frames sampled across all jobs",
	})

	RegionsDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edugen_regions_detected_total",
		Help: "Total number of content regions detected across all jobs",
	})

	SlidesEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "edugen_slides_emitted_total",
		Help: "Total number of distinct slides emitted by the deduplicator",
	})

	InferenceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edugen_inference_failures_total",
		Help: "Per-item detection/extraction failures absorbed without aborting the run",
	}, []string{"stage"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "edugen_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "edugen_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
