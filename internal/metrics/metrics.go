// Package metrics exposes watcher activity as Prometheus metrics. Each Metrics
// value owns its registry, so tests and multiple clients never collide on the
// global default registerer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the watcher collectors.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal    *prometheus.CounterVec
	FilteredTotal  *prometheus.CounterVec
	RegisteredApps prometheus.Gauge
	WatchersActive prometheus.Gauge
}

// Option configures New.
type Option func(*prometheus.Registry)

// WithProcessCollectors also registers the Go runtime and process collectors.
func WithProcessCollectors() Option {
	return func(r *prometheus.Registry) {
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

// New creates the collectors on a fresh registry.
func New(opts ...Option) *Metrics {
	reg := prometheus.NewRegistry()
	for _, opt := range opts {
		opt(reg)
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appwatch_events_total",
				Help: "Lifecycle events emitted, by kind",
			},
			[]string{"kind"},
		),
		FilteredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appwatch_filtered_total",
				Help: "Applications dropped from a launched list, by reason",
			},
			[]string{"reason"},
		),
		RegisteredApps: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appwatch_registered_apps",
				Help: "Applications with live property subscriptions",
			},
		),
		WatchersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "appwatch_watchers_active",
				Help: "Open watcher event streams",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) EventEmitted(kind string)          { m.EventsTotal.WithLabelValues(kind).Inc() }
func (m *Metrics) ApplicationFiltered(reason string) { m.FilteredTotal.WithLabelValues(reason).Inc() }
func (m *Metrics) AppRegistered()                    { m.RegisteredApps.Inc() }
func (m *Metrics) AppUnregistered()                  { m.RegisteredApps.Dec() }
func (m *Metrics) WatcherStarted()                   { m.WatchersActive.Inc() }
func (m *Metrics) WatcherStopped()                   { m.WatchersActive.Dec() }
