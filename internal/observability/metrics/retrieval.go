package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsightlab/hybrid-retrieval/internal/core/domain"
)

type RetrievalMetrics struct {
	registry *prometheus.Registry
	service  string

	routeTotal       *prometheus.CounterVec
	sourceDuration   *prometheus.HistogramVec
	degradationTotal *prometheus.CounterVec
	fusedResults     *prometheus.HistogramVec
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	routeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "route_total",
			Help:      "Total retrieve requests by classifier route.",
		},
		[]string{"service", "route"},
	)
	sourceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "source_duration_seconds",
			Help:      "Per-source retrieval duration in seconds by outcome.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"service", "source", "status"},
	)
	degradationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "partial_degradation_total",
			Help:      "Requests where one source contributed nothing while the other produced candidates.",
		},
		[]string{"service", "source", "reason"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hre",
			Subsystem: "retrieval",
			Name:      "fused_results",
			Help:      "Distribution of fused candidates returned per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "route"},
	)

	registry.MustRegister(routeTotal, sourceDuration, degradationTotal, fusedResults)

	return &RetrievalMetrics{
		registry:         registry,
		service:          service,
		routeTotal:       routeTotal,
		sourceDuration:   sourceDuration,
		degradationTotal: degradationTotal,
		fusedResults:     fusedResults,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) ObserveRoute(route domain.Route) {
	m.routeTotal.WithLabelValues(m.service, string(route)).Inc()
}

func (m *RetrievalMetrics) ObserveSource(source domain.Source, status string, elapsed time.Duration) {
	m.sourceDuration.WithLabelValues(m.service, string(source), status).Observe(elapsed.Seconds())
}

func (m *RetrievalMetrics) ObserveDegradation(source domain.Source, reason domain.DegradationReason) {
	m.degradationTotal.WithLabelValues(m.service, string(source), string(reason)).Inc()
}

func (m *RetrievalMetrics) ObserveFusedResults(route domain.Route, count int) {
	m.fusedResults.WithLabelValues(m.service, string(route)).Observe(float64(count))
}
