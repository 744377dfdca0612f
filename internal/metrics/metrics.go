// Package metrics holds the prometheus collectors of the verification
// pipeline and the transport client.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels a check that produced a license.
const OutcomeOK = "ok"

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	checks    *prometheus.CounterVec
	transport *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keyverify",
			Name:      "checks_total",
			Help:      "License response checks by outcome.",
		}, []string{"outcome"}),
		transport: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keyverify",
			Name:      "transport_seconds",
			Help:      "Duration of licensing service calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.checks, m.transport)
	return m
}

// ObserveCheck counts one check. outcome is OutcomeOK or an error kind.
func (m *Metrics) ObserveCheck(outcome string) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransport(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.transport.WithLabelValues(method).Observe(d.Seconds())
}

// Registry exposes the registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
