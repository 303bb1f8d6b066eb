package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments the service. It is created before the cache and the
// cascade so both can record into it; the cache size gauge is bound later
// via ObserveCacheSize once the cache exists.
type Metrics struct {
	ResolvesTotal         *prometheus.CounterVec
	ResolveDuration       *prometheus.HistogramVec
	CacheEventsTotal      *prometheus.CounterVec
	StrategyAttemptsTotal *prometheus.CounterVec
	EvictionsTotal        prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	m := &Metrics{
		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectm_resolves_total",
				Help: "Total number of resolution requests by terminal outcome",
			},
			[]string{"outcome"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "projectm_resolve_duration_seconds",
				Help:    "Time spent serving a resolution request",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		CacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectm_cache_events_total",
				Help: "Artifact cache lookup events (hit, miss, coalesced)",
			},
			[]string{"event"},
		),
		StrategyAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "projectm_strategy_attempts_total",
				Help: "Resolution strategy attempts by strategy and status",
			},
			[]string{"strategy", "status"},
		),
		EvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "projectm_evictions_total",
				Help: "Total number of artifacts removed by the eviction sweeper",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ResolvesTotal,
		m.ResolveDuration,
		m.CacheEventsTotal,
		m.StrategyAttemptsTotal,
		m.EvictionsTotal,
	)

	return m
}

// ObserveCacheSize registers a gauge evaluated at scrape time.
func (m *Metrics) ObserveCacheSize(cacheLen func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "projectm_cache_entries",
			Help: "Current number of artifacts in the cache directory",
		},
		func() float64 { return float64(cacheLen()) },
	))
}

func (m *Metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordCacheEvent implements the cache's event recorder.
func (m *Metrics) RecordCacheEvent(event string) {
	m.CacheEventsTotal.WithLabelValues(event).Inc()
}

// RecordStrategyAttempt implements the cascade's attempt recorder.
func (m *Metrics) RecordStrategyAttempt(strategy, status string) {
	m.StrategyAttemptsTotal.WithLabelValues(strategy, status).Inc()
}

// RecordEvictions is wired as the sweeper's eviction hook.
func (m *Metrics) RecordEvictions(removed int) {
	m.EvictionsTotal.Add(float64(removed))
}
