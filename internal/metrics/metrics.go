// package metrics exposes Prometheus instrumentation for catalog queries, playlist synthesis, the favorites graph
// and the HTTP API.
//
// Collectors live on a per-instance registry so tests and multiple servers never collide. Every method is safe to
// call on a nil *Metrics, which records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/tastemixer/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tastemixer"

// Outcome labels.
const (
	OutcomeOK                = "ok"
	OutcomeCredentialInvalid = "credential_invalid"
	OutcomeInsufficient      = "insufficient_favorites"
	OutcomeError             = "error"
)

// Metrics holds every collector.
type Metrics struct {
	registry *prometheus.Registry

	CatalogQueries  *prometheus.CounterVec
	CatalogDuration *prometheus.HistogramVec
	BreakerState    *prometheus.GaugeVec

	SynthesisRuns     *prometheus.CounterVec
	SynthesisDuration *prometheus.HistogramVec
	SynthesisTracks   *prometheus.HistogramVec

	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors, plus the Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		CatalogQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_queries_total",
			Help:      "Catalog queries by operation and outcome",
		}, []string{"operation", "outcome"}),
		CatalogDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_query_duration_seconds",
			Help:      "Duration of catalog queries in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_breaker_state",
			Help:      "1 for the current circuit breaker state, 0 otherwise",
		}, []string{"state"}),
		SynthesisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_runs_total",
			Help:      "Playlist synthesis runs by path and outcome",
		}, []string{"path", "outcome"}),
		SynthesisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_duration_seconds",
			Help:      "Duration of playlist synthesis in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"path"}),
		SynthesisTracks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_tracks",
			Help:      "Number of tracks returned by synthesis",
			Buckets:   []float64{0, 5, 10, 20, 29, 30},
		}, []string{"path"}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the favorites graph",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the favorites graph",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.CatalogQueries, m.CatalogDuration, m.BreakerState,
		m.SynthesisRuns, m.SynthesisDuration, m.SynthesisTracks,
		m.GraphNodes, m.GraphEdges,
		m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome classifies err into an outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, shared.ErrCredentialInvalid), errors.Is(err, shared.ErrNotAuthenticated):
		return OutcomeCredentialInvalid
	case errors.Is(err, shared.ErrInsufficientFavorites):
		return OutcomeInsufficient
	default:
		return OutcomeError
	}
}

func (m *Metrics) ObserveCatalog(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CatalogQueries.WithLabelValues(op, Outcome(err)).Inc()
	m.CatalogDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetBreakerState marks state as the current breaker state and clears the others.
func (m *Metrics) SetBreakerState(state string) {
	if m == nil {
		return
	}
	for _, s := range []string{"closed", "half-open", "open"} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.BreakerState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) ObserveSynthesis(path string, d time.Duration, tracks int, err error) {
	if m == nil {
		return
	}
	m.SynthesisRuns.WithLabelValues(path, Outcome(err)).Inc()
	m.SynthesisDuration.WithLabelValues(path).Observe(d.Seconds())
	if err == nil {
		m.SynthesisTracks.WithLabelValues(path).Observe(float64(tracks))
	}
}

func (m *Metrics) SetGraphSize(nodes, edges int) {
	if m == nil {
		return
	}
	m.GraphNodes.Set(float64(nodes))
	m.GraphEdges.Set(float64(edges))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
