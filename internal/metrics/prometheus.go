package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts accepted generation jobs by style.
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mayalens_jobs_submitted_total",
			Help: "Total number of accepted generation jobs",
		},
		[]string{"style"},
	)

	// JobsProcessed counts processed jobs by final per-attempt outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mayalens_jobs_processed_total",
			Help: "Total number of worker job attempts by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationDuration tracks the wall time of one job attempt in seconds.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mayalens_generation_duration_seconds",
			Help:    "Duration of generation attempts in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
		[]string{"style"},
	)

	// WorkersActive tracks the number of workers with an in-flight job.
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mayalens_workers_active",
			Help: "Number of worker goroutines currently processing a job",
		},
	)

	// StorageRetries counts asset upload retries at the publish layer.
	StorageRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mayalens_storage_retries_total",
			Help: "Total number of asset upload retries",
		},
	)

	// EventPublishFailures counts job event broker publishes that failed.
	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mayalens_event_publish_failures_total",
			Help: "Total number of failed job event publishes",
		},
	)
)
