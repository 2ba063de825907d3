// Package metrics provides Prometheus metrics collection for the delivery server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/caas/ports"
)

const namespace = "caas"

// Collector holds all Prometheus metrics.
type Collector struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Query pipeline metrics
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     *prometheus.HistogramVec
	EngineErrorsTotal prometheus.Counter
	InterceptorSkips  *prometheus.CounterVec

	// Definition cache metrics
	DefinitionCacheHits   prometheus.Counter
	DefinitionCacheMisses prometheus.Counter
	DefinitionBuilds      *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of queries by outcome",
			},
			[]string{"tenant", "site", "definition", "query", "status"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Query pipeline duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"tenant", "site", "definition", "query"},
		),
		EngineErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_errors_total",
				Help:      "Total number of query engine errors",
			},
		),
		InterceptorSkips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interceptor_skips_total",
				Help:      "Total number of requests skipped by pre-query interceptors",
			},
			[]string{"interceptor"},
		),

		DefinitionCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_cache_hits_total",
				Help:      "Total number of processing definition cache hits",
			},
		),
		DefinitionCacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_cache_misses_total",
				Help:      "Total number of processing definition cache misses",
			},
		),
		DefinitionBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definition_builds_total",
				Help:      "Total number of processing definition builds by outcome",
			},
			[]string{"status"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveQuery records one pipeline run.
func (c *Collector) ObserveQuery(tenant, siteID, pd, query, status string, d time.Duration) {
	c.QueriesTotal.WithLabelValues(tenant, siteID, pd, query, status).Inc()
	c.QueryDuration.WithLabelValues(tenant, siteID, pd, query).Observe(d.Seconds())
}

// DefinitionCacheHit counts a cache hit.
func (c *Collector) DefinitionCacheHit() {
	c.DefinitionCacheHits.Inc()
}

// DefinitionCacheMiss counts a cache miss.
func (c *Collector) DefinitionCacheMiss() {
	c.DefinitionCacheMisses.Inc()
}

// DefinitionBuild counts a definition build.
func (c *Collector) DefinitionBuild(status string) {
	c.DefinitionBuilds.WithLabelValues(status).Inc()
}

// InterceptorSkip counts a skipped request.
func (c *Collector) InterceptorSkip(name string) {
	c.InterceptorSkips.WithLabelValues(name).Inc()
}

// EngineErrors counts query engine errors.
func (c *Collector) EngineErrors(n int) {
	c.EngineErrorsTotal.Add(float64(n))
}

// ConfigReloaded records a config reload attempt.
func (c *Collector) ConfigReloaded(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.SetToCurrentTime()
}

var _ ports.QueryMetrics = (*Collector)(nil)
