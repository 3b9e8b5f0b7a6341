package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "websub_hub"

// Delivery results.
const (
	DeliveryDelivered = "delivered"
	DeliveryRetried   = "retried"
	DeliveryFailed    = "failed"
	DeliveryDropped   = "dropped"
)

type Metrics interface {
	ObserveRequest(mode string, statusCode int)
	ObserveVerification(mode, outcome string)
	ObserveDelivery(result string, duration time.Duration)
	Handler() http.Handler
}

type NopMetrics struct{}

func (NopMetrics) ObserveRequest(string, int)            {}
func (NopMetrics) ObserveVerification(string, string)    {}
func (NopMetrics) ObserveDelivery(string, time.Duration) {}
func (NopMetrics) Handler() http.Handler                 { return http.NotFoundHandler() }

type PrometheusMetrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	deliveryTime  prometheus.Histogram
}

// NewPrometheusMetrics registers the hub collectors into a dedicated registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Hub requests by mode and response status code.",
		}, []string{"mode", "code"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "verifications_total",
			Help:      "Resolved subscription attempts by mode and outcome.",
		}, []string{"mode", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "deliveries_total",
			Help:      "Notification attempts by result.",
		}, []string{"result"}),
		deliveryTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of notification requests in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.verifications,
		m.deliveries,
		m.deliveryTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *PrometheusMetrics) ObserveRequest(mode string, statusCode int) {
	m.requests.WithLabelValues(mode, strconv.Itoa(statusCode)).Inc()
}

func (m *PrometheusMetrics) ObserveVerification(mode, outcome string) {
	m.verifications.WithLabelValues(mode, outcome).Inc()
}

func (m *PrometheusMetrics) ObserveDelivery(result string, duration time.Duration) {
	m.deliveries.WithLabelValues(result).Inc()
	if duration > 0 {
		m.deliveryTime.Observe(duration.Seconds())
	}
}

func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
