package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/litterly/waste-classification-service/vision"
)

const metricsNamespace = "litterly"

type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	classifications *prometheus.CounterVec
}

// NewMetrics registers the service collectors on a private registry. Model
// and pool values are read from the manager at scrape time.
func NewMetrics(model *vision.Manager) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "classifications_total",
			Help:      "Terminal classification outcomes by branch.",
		}, []string{"branch", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.classifications,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "model_state",
			Help:      "Model lifecycle state: 0 unloaded, 1 loading, 2 loaded, 3 failed.",
		}, func() float64 {
			return float64(model.State())
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "session_pool_in_use",
			Help:      "Inference sessions currently checked out.",
		}, func() float64 {
			stats, _ := model.PoolStats()
			return float64(stats.InUse)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_pool_acquire_failures_total",
			Help:      "Inference session acquisitions that timed out or were cancelled.",
		}, func() float64 {
			stats, _ := model.PoolStats()
			return float64(stats.AcquireFailures)
		}),
	)
	return m
}

func (m *Metrics) Classifications() *prometheus.CounterVec {
	return m.classifications
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
