package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"autotag/internal/queue"
	"autotag/internal/tagging"
)

// Pipeline metrics
var (
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotag_items_processed_total",
			Help: "Queue items that finished processing, by final status",
		},
		[]string{"status"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotag_stage_duration_seconds",
			Help:    "Wall time spent in each pipeline stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	Tier2Failures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotag_tier2_failures_total",
			Help: "Remote vision calls that failed, by error kind",
		},
		[]string{"kind"},
	)

	ResolverMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotag_resolver_matches_total",
			Help: "Labels resolved to vocabulary tags, by match type",
		},
		[]string{"match_type"},
	)

	Suggestions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "autotag_new_tag_suggestions_total",
			Help: "New-tag suggestions produced by the resolver",
		},
	)
)

// Queue and worker metrics
var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotag_queue_items",
			Help: "Queue rows by status",
		},
		[]string{"status"},
	)

	WorkerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "autotag_worker_state",
			Help: "1 when the worker is in the labelled state (running, paused)",
		},
		[]string{"state"},
	)

	ReviewOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotag_review_outcomes_total",
			Help: "Review decisions, by outcome",
		},
		[]string{"outcome"},
	)
)

// HTTP metrics
var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autotag_http_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "autotag_http_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveStage records how long a stage took.
func ObserveStage(stage string, started time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// RecordResolution counts matches by type and the suggestions emitted.
func RecordResolution(matched []tagging.MatchedTag, suggestions int) {
	for _, m := range matched {
		ResolverMatches.WithLabelValues(string(m.MatchType)).Inc()
	}
	if suggestions > 0 {
		Suggestions.Add(float64(suggestions))
	}
}

// SetQueueDepth publishes queue counts.
func SetQueueDepth(stats queue.Stats) {
	QueueDepth.WithLabelValues(string(queue.StatusPending)).Set(float64(stats.Pending))
	QueueDepth.WithLabelValues(string(queue.StatusProcessing)).Set(float64(stats.Processing))
	QueueDepth.WithLabelValues(string(queue.StatusCompleted)).Set(float64(stats.Completed))
	QueueDepth.WithLabelValues(string(queue.StatusFailed)).Set(float64(stats.Failed))
}

// SetWorkerState publishes the running and paused flags.
func SetWorkerState(running, paused bool) {
	WorkerState.WithLabelValues("running").Set(boolGauge(running))
	WorkerState.WithLabelValues("paused").Set(boolGauge(paused))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
