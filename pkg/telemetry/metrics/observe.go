package metrics

import "github.com/prometheus/client_golang/prometheus"

// ObserveMetrics tracks the observe daemon.
type ObserveMetrics struct {
	ticks         prometheus.Counter
	newViolations prometheus.Counter
	deliveries    *prometheus.CounterVec
}

// NewObserveMetrics creates and registers observe metrics.
func NewObserveMetrics(namespace string, registry *prometheus.Registry) *ObserveMetrics {
	m := &ObserveMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observe_ticks_total",
			Help:      "Total number of completed observe ticks",
		}),
		newViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observe_new_violations_total",
			Help:      "Total number of violations not seen on the previous tick",
		}),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Webhook delivery outcomes (delivered, failed, dropped)",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(m.ticks, m.newViolations, m.deliveries)
	return m
}

// RecordTick records a completed tick and its newly observed violations.
func (c *Collector) RecordTick(newViolations int) {
	if !c.Enabled() {
		return
	}
	c.observe.ticks.Inc()
	c.observe.newViolations.Add(float64(newViolations))
}

// RecordDelivery records a webhook delivery outcome.
func (c *Collector) RecordDelivery(result string) {
	if !c.Enabled() {
		return
	}
	c.observe.deliveries.WithLabelValues(result).Inc()
}
