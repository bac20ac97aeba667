package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "task_service"

// Metrics holds the Prometheus collectors of the service on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errorsTotal      *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec
	liveConnections  prometheus.Gauge
	connectionsTotal prometheus.Counter
	broadcastsTotal  prometheus.Counter
	deliveriesTotal  prometheus.Counter
	deliveryFailures prometheus.Counter
}

// NewMetrics creates and registers service metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Total number of error responses by route, method and error code",
		}, []string{"path", "method", "code"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"result"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Currently registered realtime connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_connections_total",
			Help:      "Realtime connections admitted since start",
		}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_broadcasts_total",
			Help:      "Messages fanned out by the connection registry",
		}),
		deliveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_deliveries_total",
			Help:      "Messages queued for individual connections",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_delivery_failures_total",
			Help:      "Deliveries that failed and evicted the recipient",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.loginsTotal,
		m.liveConnections,
		m.connectionsTotal,
		m.broadcastsTotal,
		m.deliveriesTotal,
		m.deliveryFailures,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(path, method, code).Inc()
}

// RecordLogin counts a login attempt; result is "success" or "failure".
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

// ConnectionOpened implements realtime.Recorder.
func (m *Metrics) ConnectionOpened() {
	m.liveConnections.Inc()
	m.connectionsTotal.Inc()
}

// ConnectionClosed implements realtime.Recorder.
func (m *Metrics) ConnectionClosed() {
	m.liveConnections.Dec()
}

// MessageBroadcast implements realtime.Recorder.
func (m *Metrics) MessageBroadcast(recipients int) {
	m.broadcastsTotal.Inc()
	m.deliveriesTotal.Add(float64(recipients))
}

// DeliveryFailed implements realtime.Recorder.
func (m *Metrics) DeliveryFailed() {
	m.deliveryFailures.Inc()
}
