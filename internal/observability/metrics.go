package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	MessagesReceived  *prometheus.CounterVec
	RepliesSent       *prometheus.CounterVec
	RetrievedExamples *prometheus.CounterVec
	PatternsLearned   prometheus.Counter
	GenerationLatency prometheus.Histogram
	CommentsPosted    *prometheus.CounterVec
	WSMessages        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Incoming messages by chat type.",
		}, []string{"chat_type"}),
		RepliesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_sent_total",
			Help:      "Replies by path: fastpath, generated, greeting, name_intro or fallback.",
		}, []string{"path"}),
		RetrievedExamples: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieved_examples_total",
			Help:      "Prompt examples served by source.",
		}, []string{"source"}),
		PatternsLearned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patterns_learned_total",
			Help:      "Exchanges promoted into the learned pattern store.",
		}),
		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "Model generation latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
		CommentsPosted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Channel post comments by outcome.",
		}, []string{"outcome"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "Debug console WebSocket messages by direction.",
		}, []string{"direction"}),
	}
}

func (m *Metrics) ObserveGenerationLatency(d time.Duration) {
	m.GenerationLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
