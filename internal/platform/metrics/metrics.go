package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the dashboard service core.
type Metrics struct {
	registry                 *prometheus.Registry
	requestsTotal            prometheus.Counter
	errorsTotal              prometheus.Counter
	admissionRejectedTotal   prometheus.Counter
	broadcastsDeliveredTotal prometheus.Counter
	connectionsTotal         prometheus.Counter
	activeConnections        prometheus.Gauge
	activeRooms              prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	admissionRejectedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_admission_rejected_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
	broadcastsDeliveredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_broadcasts_delivered_total",
		Help: "Total number of messages delivered to room members",
	})
	connectionsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_connections_total",
		Help: "Total number of websocket connections accepted",
	})
	activeConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_active_connections",
		Help: "Number of currently registered websocket connections",
	})
	activeRooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_active_rooms",
		Help: "Number of rooms with at least one member",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		admissionRejectedTotal,
		broadcastsDeliveredTotal,
		connectionsTotal,
		activeConnections,
		activeRooms,
	)

	return &Metrics{
		registry:                 registry,
		requestsTotal:            requestsTotal,
		errorsTotal:              errorsTotal,
		admissionRejectedTotal:   admissionRejectedTotal,
		broadcastsDeliveredTotal: broadcastsDeliveredTotal,
		connectionsTotal:         connectionsTotal,
		activeConnections:        activeConnections,
		activeRooms:              activeRooms,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncAdmissionRejected increments the rate-limit rejection counter.
func (m *Metrics) IncAdmissionRejected() {
	m.admissionRejectedTotal.Inc()
}

// AddBroadcastsDelivered adds n to the delivered broadcast counter.
func (m *Metrics) AddBroadcastsDelivered(n int) {
	m.broadcastsDeliveredTotal.Add(float64(n))
}

// IncConnections increments the accepted connection counter.
func (m *Metrics) IncConnections() {
	m.connectionsTotal.Inc()
}

// SetActiveConnections sets the active connections gauge.
func (m *Metrics) SetActiveConnections(n int) {
	m.activeConnections.Set(float64(n))
}

// SetActiveRooms sets the active rooms gauge.
func (m *Metrics) SetActiveRooms(n int) {
	m.activeRooms.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active connections).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
