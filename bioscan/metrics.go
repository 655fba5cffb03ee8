package bioscan

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for analyses, embeddings and the registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	rejected         *prometheus.CounterVec
	embeds           *prometheus.CounterVec
	embedDuration    prometheus.Histogram
	registryEntries  prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioscan",
			Name:      "analyses_total",
			Help:      "Analyses that reached a terminal state",
		}, []string{"outcome"}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bioscan",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of analyses from start to terminal state",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioscan",
			Name:      "analyses_rejected_total",
			Help:      "Analysis requests rejected before running",
		}, []string{"reason"}),
		embeds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bioscan",
			Name:      "embeddings_total",
			Help:      "Signatures served, by source",
		}, []string{"source"}),
		embedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bioscan",
			Name:      "inference_duration_seconds",
			Help:      "Model inference latency per sequence",
			Buckets:   prometheus.DefBuckets,
		}),
		registryEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bioscan",
			Name:      "registry_entries",
			Help:      "Receptors currently registered",
		}),
	}
}

func (m *Metrics) observeAnalysis(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeEmbed(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.embeds.WithLabelValues(source).Inc()
	if source == "model" {
		m.embedDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) setRegistrySize(n int) {
	if m == nil {
		return
	}
	m.registryEntries.Set(float64(n))
}
