// Package observability aggregates the application's Prometheus metrics.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tphakala/audioload/internal/observability/metrics"
)

// Metrics holds all application metric collectors and their registry.
type Metrics struct {
	Loader   *metrics.LoaderMetrics
	registry *prometheus.Registry
}

// NewMetrics creates a registry with all component metrics registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	loaderMetrics, err := metrics.NewLoaderMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create loader metrics: %w", err)
	}

	return &Metrics{
		Loader:   loaderMetrics,
		registry: registry,
	}, nil
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
