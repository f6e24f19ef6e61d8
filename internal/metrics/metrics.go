// Package metrics exposes storefront counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ttwixxbot/telegram-shop/internal/order"
)

const namespace = "shop"

// Metrics implements checkout.Observer and the catalog failure hook.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	ordersSubmitted   prometheus.Counter
	orderValue        prometheus.Counter
	checkoutRejected  *prometheus.CounterVec
	checkoutCancelled prometheus.Counter
	catalogFailures   *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New creates the collectors on a private registry together with the Go and process
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders handed to the host.",
		}),
		orderValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_value_total",
			Help:      "Sum of submitted order totals in the smallest currency unit.",
		}),
		checkoutRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_rejected_total",
			Help:      "Checkout attempts rejected by order validation.",
		}, []string{"reason"}),
		checkoutCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_cancelled_total",
			Help:      "Checkout attempts declined at the confirmation popup.",
		}),
		catalogFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_load_failures_total",
			Help:      "Failed catalog loads by source.",
		}, []string{"source"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ordersSubmitted,
		m.orderValue,
		m.checkoutRejected,
		m.checkoutCancelled,
		m.catalogFailures,
		m.requestDuration,
	)

	return m
}

func (m *Metrics) OrderSubmitted(total int64) {
	m.ordersSubmitted.Inc()
	m.orderValue.Add(float64(total))
}

func (m *Metrics) CheckoutRejected(reason order.Reason) {
	m.checkoutRejected.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) CheckoutCancelled() {
	m.checkoutCancelled.Inc()
}

func (m *Metrics) CatalogLoadFailed(source string) {
	m.catalogFailures.WithLabelValues(source).Inc()
}

// ObserveRequest records one served request. route is the matched pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
