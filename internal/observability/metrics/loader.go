// Package metrics provides custom Prometheus metrics for audioload components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LoaderMetrics contains all Prometheus metrics related to buffer load coordination.
type LoaderMetrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	FetchStarts   prometheus.Counter
	FetchErrors   prometheus.Counter
	Cancellations prometheus.Counter
	Supersessions prometheus.Counter
	FetchDuration prometheus.Histogram
	registry      *prometheus.Registry
}

// NewLoaderMetrics creates a new instance of LoaderMetrics registered on the
// given Prometheus registry. It returns an error if metric registration fails.
func NewLoaderMetrics(registry *prometheus.Registry) (*LoaderMetrics, error) {
	m := &LoaderMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register loader metrics: %w", err)
	}
	return m, nil
}

// initMetrics initializes all metrics for LoaderMetrics.
func (m *LoaderMetrics) initMetrics() {
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_cache_hits_total",
		Help: "Total number of buffer cache hits.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_cache_misses_total",
		Help: "Total number of buffer cache misses.",
	})

	m.FetchStarts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_fetch_starts_total",
		Help: "Total number of fetch requests issued.",
	})

	m.FetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_fetch_errors_total",
		Help: "Total number of failed fetch requests.",
	})

	m.Cancellations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_cancellations_total",
		Help: "Total number of fetch requests cancelled before completion.",
	})

	m.Supersessions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buffer_loader_supersessions_total",
		Help: "Total number of completed requests discarded because a newer request took over.",
	})

	m.FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "buffer_loader_fetch_duration_seconds",
		Help:    "Duration of buffer fetches in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
}

// Describe implements the prometheus.Collector interface.
func (m *LoaderMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CacheHits.Describe(ch)
	m.CacheMisses.Describe(ch)
	m.FetchStarts.Describe(ch)
	m.FetchErrors.Describe(ch)
	m.Cancellations.Describe(ch)
	m.Supersessions.Describe(ch)
	m.FetchDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *LoaderMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.FetchStarts.Collect(ch)
	m.FetchErrors.Collect(ch)
	m.Cancellations.Collect(ch)
	m.Supersessions.Collect(ch)
	m.FetchDuration.Collect(ch)
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *LoaderMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the cache miss counter by one.
func (m *LoaderMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// IncrementFetchStarts increases the fetch start counter by one.
func (m *LoaderMetrics) IncrementFetchStarts() {
	m.FetchStarts.Inc()
}

// IncrementFetchErrors increases the fetch error counter by one.
func (m *LoaderMetrics) IncrementFetchErrors() {
	m.FetchErrors.Inc()
}

// IncrementCancellations increases the cancellation counter by one.
func (m *LoaderMetrics) IncrementCancellations() {
	m.Cancellations.Inc()
}

// IncrementSupersessions increases the supersession counter by one.
func (m *LoaderMetrics) IncrementSupersessions() {
	m.Supersessions.Inc()
}

// ObserveFetchDuration records the duration of a completed fetch.
func (m *LoaderMetrics) ObserveFetchDuration(seconds float64) {
	m.FetchDuration.Observe(seconds)
}
