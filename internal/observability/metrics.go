package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the generation pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	CasesTotal         *prometheus.CounterVec
	QualityScore       prometheus.Histogram
	RetrievalChunks    prometheus.Histogram
	FallbackSynthTotal prometheus.Counter

	// Backend metrics
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	RecoveryStagesTotal    *prometheus.CounterVec

	// Embedding metrics
	EmbeddingCacheHits   prometheus.Counter
	EmbeddingCacheMisses prometheus.Counter

	// System metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates a metrics instance backed by its own registry, so
// multiple instances can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "testweave"
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of generation requests",
			},
			[]string{"backend", "outcome"}, // outcome: success, fallback, aborted, failed
		),
		GenerationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "End-to-end generation duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"backend"},
		),
		CasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "test_cases_total",
				Help:      "Total number of test cases by validation result",
			},
			[]string{"result"}, // result: accepted, dropped, needs_review
		),
		QualityScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "test_case_quality_score",
				Help:      "Quality score distribution of accepted test cases",
				Buckets:   []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
		),
		RetrievalChunks: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_chunks",
				Help:      "Number of chunks retrieved per request",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		FallbackSynthTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_synthesis_total",
				Help:      "Total number of test cases synthesized from unparseable output",
			},
		),

		BackendRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total number of generation backend requests",
			},
			[]string{"backend", "status"},
		),
		BackendRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Generation backend request duration in seconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"backend"},
		),
		RecoveryStagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "json_recovery_stages_total",
				Help:      "Total number of responses parsed per recovery stage",
			},
			[]string{"stage"},
		),

		EmbeddingCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_hits_total",
				Help:      "Total number of embedding cache hits",
			},
		),
		EmbeddingCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_cache_misses_total",
				Help:      "Total number of embedding cache misses",
			},
		),

		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_active",
				Help:      "Number of active database connections",
			},
		),
		DBConnectionsIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_idle",
				Help:      "Number of idle database connections",
			},
		),
	}
}

// Handler returns the HTTP handler exposing this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration records one completed generation request.
func (m *Metrics) RecordGeneration(backend, outcome string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(backend, outcome).Inc()
	m.GenerationDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordValidation records the validation outcome counts of one batch.
func (m *Metrics) RecordValidation(accepted, dropped, needsReview int) {
	m.CasesTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.CasesTotal.WithLabelValues("dropped").Add(float64(dropped))
	m.CasesTotal.WithLabelValues("needs_review").Add(float64(needsReview))
}

// ObserveQuality records the quality score of one accepted case.
func (m *Metrics) ObserveQuality(score float64) {
	m.QualityScore.Observe(score)
}

// RecordRetrieval records how many chunks a request retrieved.
func (m *Metrics) RecordRetrieval(chunks int) {
	m.RetrievalChunks.Observe(float64(chunks))
}

// RecordBackendRequest records one generation backend call.
func (m *Metrics) RecordBackendRequest(backend, status string, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(backend, status).Inc()
	m.BackendRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordRecoveryStage records which stage parsed a backend response.
func (m *Metrics) RecordRecoveryStage(stage string) {
	m.RecoveryStagesTotal.WithLabelValues(stage).Inc()
}

// RecordEmbeddingCache records an embedding cache lookup.
func (m *Metrics) RecordEmbeddingCache(hit bool) {
	if hit {
		m.EmbeddingCacheHits.Inc()
		return
	}
	m.EmbeddingCacheMisses.Inc()
}

// SetDBStats publishes connection pool gauges.
func (m *Metrics) SetDBStats(active, idle int) {
	m.DBConnectionsActive.Set(float64(active))
	m.DBConnectionsIdle.Set(float64(idle))
}
