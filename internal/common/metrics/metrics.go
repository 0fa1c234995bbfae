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

	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notice_dispatch_runs_total",
			Help: "Dispatch runs by outcome",
		},
		[]string{"outcome", "dry_run"},
	)

	DispatchMatchedUsers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notice_dispatch_matched_users_total",
			Help: "Users with at least one matching notice across dispatch runs",
		},
	)

	PushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notice_push_sends_total",
			Help: "Push sends by delivery status",
		},
		[]string{"status"},
	)

	PushSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notice_push_send_duration_seconds",
			Help:    "Latency of a single push send call",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokensDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notice_token_cleanup_deleted_total",
			Help: "Subscriptions deleted by token cleanup mode",
		},
		[]string{"mode"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, status and method",
		},
		[]string{"endpoint", "status", "method"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)
