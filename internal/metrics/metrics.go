// Package metrics exposes Prometheus collectors for the portfolio engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the engine reports.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	sourceErrors    *prometheus.CounterVec
	skippedAssets   *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	catalogRefresh  *prometheus.CounterVec
}

// New creates the collectors and registers them on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_cache_lookups_total",
				Help: "Cache lookups by cache class and result",
			},
			[]string{"class", "result"},
		),
		sourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_source_errors_total",
				Help: "Errors returned by upstream data sources",
			},
			[]string{"source"},
		),
		skippedAssets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_skipped_assets_total",
				Help: "Balance records skipped during enrichment",
			},
			[]string{"reason"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portfolio_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		catalogRefresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_catalog_refresh_total",
				Help: "Catalog refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.cacheLookups,
		m.sourceErrors,
		m.skippedAssets,
		m.breakerState,
		m.catalogRefresh,
		collectors.NewGoCollector(),
	)

	return m
}

// Registry returns the registry holding the engine collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestCounter.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// CacheHit records a cache hit for a cache class
func (m *Metrics) CacheHit(class string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(class, "hit").Inc()
}

// CacheMiss records a cache miss for a cache class
func (m *Metrics) CacheMiss(class string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(class, "miss").Inc()
}

// SourceError records an upstream source failure
func (m *Metrics) SourceError(source string) {
	if m == nil {
		return
	}
	m.sourceErrors.WithLabelValues(source).Inc()
}

// AssetSkipped records a balance record dropped during enrichment
func (m *Metrics) AssetSkipped(reason string) {
	if m == nil {
		return
	}
	m.skippedAssets.WithLabelValues(reason).Inc()
}

// BreakerState records the state of a named circuit breaker
func (m *Metrics) BreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}

// CatalogRefresh records the outcome of a catalog refresh
func (m *Metrics) CatalogRefresh(outcome string) {
	if m == nil {
		return
	}
	m.catalogRefresh.WithLabelValues(outcome).Inc()
}
