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

// Metrics holds the shop's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	operations          *prometheus.CounterVec
	stockUnitsMoved     *prometheus.CounterVec
}

// New registers the collectors, plus Go and process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shop_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_operations_total",
				Help: "Total number of inventory and order operations",
			},
			[]string{"operation", "result"},
		),
		stockUnitsMoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_stock_units_moved_total",
				Help: "Stock units removed from or returned to inventory",
			},
			[]string{"direction"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// RecordOperation counts one operation outcome.
func (m *Metrics) RecordOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) StockRemoved(units int) {
	if units > 0 {
		m.stockUnitsMoved.WithLabelValues("removed").Add(float64(units))
	}
}

func (m *Metrics) StockAdded(units int) {
	if units > 0 {
		m.stockUnitsMoved.WithLabelValues("added").Add(float64(units))
	}
}
