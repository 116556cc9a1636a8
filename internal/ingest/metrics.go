package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records run outcomes, page decisions and stage latency.
type Metrics struct {
	runs      *prometheus.CounterVec
	decisions *prometheus.CounterVec
	stages    *prometheus.HistogramVec
	pages     prometheus.Histogram
}

// NewMetrics registers the ingestion collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "page_ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by final state.",
		}, []string{"state"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "page_ingest",
			Name:      "page_decisions_total",
			Help:      "Page decisions by action.",
		}, []string{"action"}),
		stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "page_ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ingestion stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"stage"}),
		pages: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "page_ingest",
			Name:      "pages_per_run",
			Help:      "Pages recovered per ingestion run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) run(state State) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) decision(a Action) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(a)).Inc()
}

func (m *Metrics) stage(state State, seconds float64) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(string(state)).Observe(seconds)
}

func (m *Metrics) recovered(n int) {
	if m == nil {
		return
	}
	m.pages.Observe(float64(n))
}
