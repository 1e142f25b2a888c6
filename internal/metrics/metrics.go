// Package metrics holds the Prometheus series exported by scrape runs and
// the API server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// URL outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnsupported = "unsupported"
	OutcomeFetchError  = "fetch_error"
	OutcomeParseError  = "parse_error"
)

// Publish outcomes.
const (
	PublishOK      = "ok"
	PublishInvalid = "invalid"
	PublishFailed  = "failed"
)

// Metrics holds all Prometheus metrics for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	URLsTotal        *prometheus.CounterVec
	PublishTotal     *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	ReconciledEvents prometheus.Gauge
}

// New registers the series on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		URLsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsync_urls_total",
			Help: "Event URLs processed, by source and outcome.",
		}, []string{"source", "outcome"}),
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventsync_publish_total",
			Help: "Calendar publish attempts, by final outcome.",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventsync_fetch_duration_seconds",
			Help:    "Duration of page fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		ReconciledEvents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventsync_reconciled_events",
			Help: "Rows in the last reconciled table.",
		}),
	}
}

func (m *Metrics) IncURL(source, outcome string) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.URLsTotal.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncPublish(outcome string) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) SetReconciled(n int) {
	if m == nil {
		return
	}
	m.ReconciledEvents.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
