// Package metrics provides prometheus metrics for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. A nil *Metrics is valid and
// records nothing, so callers never have to guard instrumentation calls.
type Metrics struct {
	IngestsTotal      *prometheus.CounterVec
	DegradationsTotal *prometheus.CounterVec
	RevertsTotal      prometheus.Counter
	CacheHitsTotal    prometheus.Counter
	CacheMissesTotal  prometheus.Counter
}

// New creates and registers the pipeline metrics. A nil registerer uses
// the default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		IngestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_ingests_total",
				Help: "Total number of version ingestions",
			},
			[]string{"outcome"},
		),
		DegradationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_degradations_total",
				Help: "Total number of soft-failed pipeline stages",
			},
			[]string{"stage"},
		),
		RevertsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docvault_reverts_total",
				Help: "Total number of version reverts",
			},
		),
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docvault_intermediate_cache_hits_total",
				Help: "Intermediate file served from the derived-data cache",
			},
		),
		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "docvault_intermediate_cache_misses_total",
				Help: "Intermediate file recomputed on a cache miss",
			},
		),
	}
}

func (m *Metrics) Ingest(outcome string) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Degraded(stage string) {
	if m == nil {
		return
	}
	m.DegradationsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) Revert() {
	if m == nil {
		return
	}
	m.RevertsTotal.Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}
