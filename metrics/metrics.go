// Package metrics instruments the dispatcher with Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the dispatch collectors.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trombone",
			Name:      "requests_total",
			Help:      "Dispatched requests by method and status code.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trombone",
			Name:      "request_duration_seconds",
			Help:      "Request processing time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trombone",
			Name:      "errors_total",
			Help:      "Error responses by error kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(m.requests, m.duration, m.errors)
	return m
}

// MeasureRequest records the outcome of one dispatched request.
func (m *Metrics) MeasureRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// MeasureError counts an error response by its kind.
func (m *Metrics) MeasureError(kind string) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(kind).Inc()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
