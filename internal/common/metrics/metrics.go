// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// AssistantTurns counts finished chat turns by where the reply came from (ai, faq, order, fallback, consent, error).
	AssistantTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Chat turns by reply source",
		},
		[]string{"source"},
	)

	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_requests_total",
			Help: "LLM requests by outcome",
		},
		[]string{"outcome"},
	)

	LLMKeyRotations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_llm_key_rotations_total",
			Help: "API key rotations caused by rate limiting",
		},
	)

	SourceFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_source_fallbacks_total",
			Help: "Data sources that failed and were replaced by their default",
		},
		[]string{"source"},
	)

	IntentPaths = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_intent_detections_total",
			Help: "Intent detections by path (fast_path, llm, fallback)",
		},
		[]string{"path"},
	)
)
