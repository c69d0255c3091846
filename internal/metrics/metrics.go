// Package metrics exposes Prometheus collectors for ledger and production
// activity. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bakery_ops"

type Metrics struct {
	registry *prometheus.Registry

	ledgerOperations   *prometheus.CounterVec
	insufficientStock  *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	feedSubscribers    prometheus.Gauge
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ledgerOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by operation and result.",
		}, []string{"operation", "result"}),
		insufficientStock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "insufficient_stock_total",
			Help:      "Consumptions rejected for lack of stock, by source.",
		}, []string{"source"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "production",
			Name:      "completion_duration_seconds",
			Help:      "Time spent completing production sheets.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		feedSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Connected live inventory feed clients.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ledgerOperations,
		m.insufficientStock,
		m.completionDuration,
		m.httpRequests,
		m.httpDuration,
		m.feedSubscribers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) LedgerOperation(operation, result string) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(operation, result).Inc()
	if result == "insufficient_stock" {
		m.insufficientStock.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) ProductionCompleted(d time.Duration, result string) {
	if m == nil {
		return
	}
	m.completionDuration.WithLabelValues(result).Observe(d.Seconds())
	if result == "insufficient_stock" {
		m.insufficientStock.WithLabelValues("production").Inc()
	}
}

func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) FeedSubscribers(delta int) {
	if m == nil {
		return
	}
	m.feedSubscribers.Add(float64(delta))
}
