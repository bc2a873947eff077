package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	Sagas         *prometheus.CounterVec
	PartialSagas  *prometheus.CounterVec
	Notifications *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

func New(service string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantnet",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plantnet",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Sagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantnet",
			Subsystem: service,
			Name:      "order_sagas_total",
			Help:      "Order lifecycle operations by outcome.",
		}, []string{"operation", "outcome"}),
		PartialSagas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantnet",
			Subsystem: service,
			Name:      "order_partial_sagas_total",
			Help:      "Sagas left half-applied between the order store and the inventory ledger.",
		}, []string{"operation"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantnet",
			Subsystem: service,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"kind", "outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.Sagas, m.PartialSagas, m.Notifications)
	return m
}

func (m *Metrics) Saga(operation, outcome string) {
	if m == nil {
		return
	}
	m.Sagas.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) PartialSaga(operation string) {
	if m == nil {
		return
	}
	m.PartialSagas.WithLabelValues(operation).Inc()
}

func (m *Metrics) Notification(kind, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
