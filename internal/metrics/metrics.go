// Package metrics holds the Prometheus collectors for the generation core.
// HTTP request metrics live in httpapi.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Directives counts applied steering directives by kind.
	Directives = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steerd",
		Subsystem: "steering",
		Name:      "directives_total",
		Help:      "Steering directives applied, by kind",
	}, []string{"kind"})

	Samples = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "steerd",
		Subsystem: "steering",
		Name:      "samples_total",
		Help:      "Tokens sampled from engines",
	})

	ContextOverflowWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "steerd",
		Name:      "context_overflow_warnings_total",
		Help:      "Prompts whose tokens plus generation horizon exceeded the context window",
	})

	PromptTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steerd",
		Subsystem: "prompt",
		Name:      "tokens",
		Help:      "Token count of formatted prompts",
		Buckets:   []float64{16, 64, 256, 1024, 4096, 16384},
	})

	// OperationDuration observes admitted session operations (prompt,
	// capture, restore, clear) excluding queue wait.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "operation_duration_seconds",
		Help:      "Duration of session operations once admitted",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "status"})

	QueueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "queue_wait_seconds",
		Help:      "Time spent waiting for a session's write turn",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
	})

	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "queue_length",
		Help:      "Operations waiting for a write turn, all sessions",
	})

	Inflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "inflight",
		Help:      "Operations holding a write turn, all sessions",
	})

	TooBusy = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "too_busy_total",
		Help:      "Operations rejected by admission",
	}, []string{"reason"})

	LiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "steerd",
		Subsystem: "session",
		Name:      "live",
		Help:      "Sessions holding an engine",
	})

	StateBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steerd",
		Subsystem: "state",
		Name:      "bytes",
		Help:      "Size of captured session states",
		Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
	})
)
