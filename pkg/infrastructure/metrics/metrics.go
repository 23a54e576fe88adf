package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Metrics holds the service's Prometheus instruments on a private registry
type Metrics struct {
	registry          *prometheus.Registry
	httpDuration      *prometheus.HistogramVec
	queryDuration     *prometheus.HistogramVec
	activeConnections prometheus.Gauge
	domainEvents      *prometheus.CounterVec
}

// New registers every instrument on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: durationBuckets,
		}, []string{"method", "route", "status_code"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_ms",
			Help:    "Duration of database queries in ms",
			Buckets: durationBuckets,
		}, []string{"operation", "model"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of in-flight HTTP requests",
		}),
		domainEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "domain_events_total",
			Help: "Total number of published domain events",
		}, []string{"event_type"}),
	}

	m.registry.MustRegister(
		m.httpDuration,
		m.queryDuration,
		m.activeConnections,
		m.domainEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for extra collectors and tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(ms(d))
}

// ObserveQuery records one database call
func (m *Metrics) ObserveQuery(operation, model string, d time.Duration) {
	m.queryDuration.WithLabelValues(operation, model).Observe(ms(d))
}

// ConnectionOpened and ConnectionClosed track in-flight requests
func (m *Metrics) ConnectionOpened() { m.activeConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.activeConnections.Dec() }

// EventPublished counts a domain event
func (m *Metrics) EventPublished(eventType string) {
	m.domainEvents.WithLabelValues(eventType).Inc()
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
