package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xfhg/intercept/pkg/config"
)

// Collector registers and records every intercept metric.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	engine  *EngineMetrics
	observe *ObserveMetrics
}

// NewCollector creates a collector. If registry is nil a fresh registry is
// used so that collectors never collide on the global default.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		enabled:  cfg.Enabled,
		registry: registry,
		engine:   NewEngineMetrics(cfg.Namespace, registry),
		observe:  NewObserveMetrics(cfg.Namespace, registry),
	}
}

// Enabled reports whether observations are recorded.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
