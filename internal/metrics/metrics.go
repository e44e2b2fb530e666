package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_recall",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chat_recall",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// op is one of chat, stream, embed; status is ok or error.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_recall",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Calls made to the model provider",
		},
		[]string{"op", "status"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chat_recall",
			Subsystem: "provider",
			Name:      "call_duration_seconds",
			Help:      "Model provider call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"op"},
	)

	EmbeddingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_recall",
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	SearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chat_recall",
			Subsystem: "search",
			Name:      "results",
			Help:      "Number of results returned by semantic search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	SummariesGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chat_recall",
			Subsystem: "chat",
			Name:      "summaries_total",
			Help:      "Conversation summaries written",
		},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat_recall",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Async chat jobs processed by outcome",
		},
		[]string{"status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
