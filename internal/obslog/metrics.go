package obslog

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus collectors for the update engine and the
// retrieval/generation path, grouped the way
// josephblackelite-nhbchain/observability/metrics.go groups its per-module
// registries (one struct of *Vec collectors, a constructor that registers
// them once, Observe/Record methods guarded against a nil receiver).
type Metrics struct {
	updateTransitions *prometheus.CounterVec
	updateFailures    *prometheus.CounterVec

	retrievalLatency *prometheus.HistogramVec
	retrievalHits    *prometheus.HistogramVec

	generationRepairs  *prometheus.CounterVec
	generationFallback prometheus.Counter
}

var (
	once sync.Once
	reg  *Metrics
)

// New returns the process-wide Metrics singleton, registering its
// collectors with reg2 on first call (mirrors moduleMetricsOnce in the
// nhbchain observability package).
func New(reg2 *prometheus.Registry) *Metrics {
	once.Do(func() {
		m := &Metrics{
			updateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "knowledgepack",
				Subsystem: "update",
				Name:      "transitions_total",
				Help:      "Count of update state machine transitions segmented by from/to state.",
			}, []string{"from", "to"}),
			updateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "knowledgepack",
				Subsystem: "update",
				Name:      "failures_total",
				Help:      "Count of update failures segmented by final state (FAILED_HARD/FAILED_RETRYABLE).",
			}, []string{"state"}),
			retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "knowledgepack",
				Subsystem: "retrieval",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for hybrid retrieval requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"mode"}),
			retrievalHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "knowledgepack",
				Subsystem: "retrieval",
				Name:      "hit_count",
				Help:      "Number of hits returned per retrieval request.",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			}, []string{"mode"}),
			generationRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "knowledgepack",
				Subsystem: "generation",
				Name:      "repairs_total",
				Help:      "Count of generation guard repair attempts segmented by outcome.",
			}, []string{"outcome"}),
			generationFallback: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "knowledgepack",
				Subsystem: "generation",
				Name:      "fallback_total",
				Help:      "Count of generation guard invocations that fell back to insufficient_authority.",
			}),
		}
		registerer := prometheus.Registerer(prometheus.DefaultRegisterer)
		if reg2 != nil {
			registerer = reg2
		}
		registerer.MustRegister(
			m.updateTransitions,
			m.updateFailures,
			m.retrievalLatency,
			m.retrievalHits,
			m.generationRepairs,
			m.generationFallback,
		)
		reg = m
	})
	return reg
}

// RecordTransition records one update state machine transition.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.updateTransitions.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordUpdateFailure records a terminal update failure state.
func (m *Metrics) RecordUpdateFailure(state string) {
	if m == nil {
		return
	}
	m.updateFailures.WithLabelValues(orUnknown(state)).Inc()
}

// ObserveRetrieval records the latency and hit count of one retrieval call.
func (m *Metrics) ObserveRetrieval(mode string, d time.Duration, hitCount int) {
	if m == nil {
		return
	}
	mode = orUnknown(mode)
	m.retrievalLatency.WithLabelValues(mode).Observe(d.Seconds())
	m.retrievalHits.WithLabelValues(mode).Observe(float64(hitCount))
}

// RecordRepair increments the generation guard repair counter for the
// given outcome ("recovered", "exhausted").
func (m *Metrics) RecordRepair(outcome string) {
	if m == nil {
		return
	}
	m.generationRepairs.WithLabelValues(orUnknown(outcome)).Inc()
}

// RecordFallback increments the generation guard fallback counter.
func (m *Metrics) RecordFallback() {
	if m == nil {
		return
	}
	m.generationFallback.Inc()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
