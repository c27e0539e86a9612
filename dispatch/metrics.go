package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "cbmgmt"

// Metrics holds the dispatcher's prometheus collectors.
type Metrics struct {
	Submitted *prometheus.CounterVec
	Completed *prometheus.CounterVec
	InFlight  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg, if non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_submitted_total",
				Help:      "count of management operations handed to the native client",
			}, []string{"op"}),
		Completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_completed_total",
				Help:      "count of management operation outcomes delivered",
			}, []string{"op", "mode", "outcome"}),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "operations_in_flight",
				Help:      "management operations submitted but not yet delivered",
			}),
	}
	if reg != nil {
		reg.MustRegister(m.Submitted, m.Completed, m.InFlight)
	}
	return m
}
