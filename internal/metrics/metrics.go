// Package metrics exposes the chat and ingestion counters on a private
// prometheus registry. A nil *Metrics is a valid no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCrisis   = "crisis"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Metrics struct {
	registry      *prometheus.Registry
	chatRequests  *prometheus.CounterVec
	chatDuration  prometheus.Histogram
	ingestChunks  prometheus.Counter
	ingestedFiles prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agrochat",
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agrochat",
			Name:      "chat_duration_seconds",
			Help:      "Time spent answering chat requests.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ingestChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrochat",
			Name:      "ingested_chunks_total",
			Help:      "Chunks embedded and stored in the vector index.",
		}),
		ingestedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agrochat",
			Name:      "ingested_documents_total",
			Help:      "Documents fully ingested.",
		}),
	}
	m.registry.MustRegister(
		m.chatRequests,
		m.chatDuration,
		m.ingestChunks,
		m.ingestedFiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveChat(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeError {
		m.chatDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AddChunks(n int) {
	if m == nil {
		return
	}
	m.ingestChunks.Add(float64(n))
}

func (m *Metrics) IncDocuments() {
	if m == nil {
		return
	}
	m.ingestedFiles.Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
