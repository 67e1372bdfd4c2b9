// Package metrics provides Prometheus metrics for the guestlog server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results used as the result label.
const (
	ResultOK          = "ok"
	ResultInvalidJSON = "invalid_json"
	ResultError       = "error"
)

// Metrics holds all guestlog collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	operations   *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	appended     prometheus.Counter
	pruned       prometheus.Counter
	retained     prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg: reg,
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlog_operations_total",
				Help: "Total number of guest file operations by result",
			},
			[]string{"op", "result"},
		),
		opDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guestlog_operation_duration_seconds",
				Help:    "Guest file operation duration in seconds, including lock wait",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"op"},
		),
		appended: f.NewCounter(prometheus.CounterOpts{
			Name: "guestlog_records_appended_total",
			Help: "Total number of records appended",
		}),
		pruned: f.NewCounter(prometheus.CounterOpts{
			Name: "guestlog_records_pruned_total",
			Help: "Total number of records removed by prune",
		}),
		retained: f.NewGauge(prometheus.GaugeOpts{
			Name: "guestlog_records_retained",
			Help: "Number of records kept by the last successful prune",
		}),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "guestlog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "guestlog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// ObserveOperation records one guest file operation.
func (m *Metrics) ObserveOperation(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.opDuration.WithLabelValues(op).Observe(d.Seconds())
}

// AddAppended counts records written by an append.
func (m *Metrics) AddAppended(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.appended.Add(float64(n))
}

// ObservePrune records the outcome of a successful prune.
func (m *Metrics) ObservePrune(kept, removed int) {
	if m == nil {
		return
	}
	m.pruned.Add(float64(removed))
	m.retained.Set(float64(kept))
}

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
