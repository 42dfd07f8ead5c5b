// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Host metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationFailures *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec

	// Event metrics
	EventsEmitted *prometheus.CounterVec
	NotifyErrors  *prometheus.CounterVec
	StreamClients prometheus.Gauge

	// Ledger metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreOpErrors   *prometheus.CounterVec
	TotalSupply     prometheus.Gauge

	// RPC client metrics
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with the default registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates a new Metrics instance registered with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "ft_ledger"
	}
	factory := promauto.With(reg)

	return &Metrics{
		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "invocations_total",
			Help:      "Total number of operation invocations by method and status",
		}, []string{"method", "status"}),
		InvocationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "invocation_failures_total",
			Help:      "Total number of failed invocations by method and error kind",
		}, []string{"method", "kind"}),
		InvocationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "invocation_duration_seconds",
			Help:      "Invocation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total number of token events emitted by kind",
		}, []string{"kind"}),
		NotifyErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "notify_errors_total",
			Help:      "Total number of notifier delivery errors",
		}, []string{"notifier"}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "stream_clients",
			Help:      "Current number of websocket event stream subscribers",
		}),

		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "store_op_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		StoreOpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "store_op_errors_total",
			Help:      "Total number of storage operation errors",
		}, []string{"operation"}),
		TotalSupply: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "total_supply",
			Help:      "Minted total supply (float approximation)",
		}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "JSON-RPC client call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordInvocation records a completed invocation. kind is empty on success.
func RecordInvocation(method, kind string, seconds float64) {
	status := "ok"
	if kind != "" {
		status = "error"
		DefaultMetrics.InvocationFailures.WithLabelValues(method, kind).Inc()
	}
	DefaultMetrics.InvocationsTotal.WithLabelValues(method, status).Inc()
	DefaultMetrics.InvocationDuration.WithLabelValues(method).Observe(seconds)
}

// RecordEventEmitted increments the emitted events counter.
func RecordEventEmitted(kind string) {
	DefaultMetrics.EventsEmitted.WithLabelValues(kind).Inc()
}

// RecordNotifyError records a failed delivery to a notifier.
func RecordNotifyError(notifier string) {
	DefaultMetrics.NotifyErrors.WithLabelValues(notifier).Inc()
}

// UpdateStreamClients sets the websocket subscriber gauge.
func UpdateStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordStoreOp records storage operation metrics.
func RecordStoreOp(operation string, seconds float64, err error) {
	DefaultMetrics.StoreOpDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.StoreOpErrors.WithLabelValues(operation).Inc()
	}
}

// UpdateTotalSupply updates the total supply gauge.
func UpdateTotalSupply(supply float64) {
	DefaultMetrics.TotalSupply.Set(supply)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
