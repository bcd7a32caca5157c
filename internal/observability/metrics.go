// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for the bridge.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tgbridge/internal/bridge/app"
	"tgbridge/internal/bridge/ports"
)

const namespace = "tgbridge"

var connectionStates = []ports.ConnectionState{
	ports.StateUninitialized,
	ports.StateConnecting,
	ports.StateAuthorized,
	ports.StateFailed,
}

// Metrics records bridge lifecycle and HTTP metrics. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	connectionState  *prometheus.GaugeVec
	connectAttempts  *prometheus.CounterVec
	connectDuration  prometheus.Histogram
	healthChecks     *prometheus.CounterVec
	healthLatency    prometheus.Histogram
	sends            *prometheus.CounterVec
	sendDuration     prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rateLimitRejects prometheus.Counter
}

var _ app.Recorder = (*Metrics)(nil)

// NewMetrics builds metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWithRegistry(registry)
}

// NewMetricsWithRegistry allows tests to provide a dedicated registry.
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "connection_state",
			Help:      "1 for the current Telegram connection state, 0 otherwise",
		}, []string{"state"}),
		connectAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts that reached the network, by outcome",
		}, []string{"outcome"}),
		connectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "connect_duration_seconds",
			Help:      "Duration of the connect and identity verification attempt",
			Buckets:   prometheus.DefBuckets,
		}),
		healthChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "checks_total",
			Help:      "Telegram health checks answered, by result and cache use",
		}, []string{"result", "cached"}),
		healthLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "probe_latency_seconds",
			Help:      "Latency of fresh Telegram health probes",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		sends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Messages handed to Telegram, by outcome",
		}, []string{"outcome"}),
		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "send_duration_seconds",
			Help:      "Duration of message delivery calls",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimitRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Send requests rejected by the per-client rate limiter",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetConnectionState implements app.Recorder.
func (m *Metrics) SetConnectionState(state ports.ConnectionState) {
	if m == nil {
		return
	}
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1
		}
		m.connectionState.WithLabelValues(s.String()).Set(value)
	}
}

// ObserveConnectAttempt implements app.Recorder.
func (m *Metrics) ObserveConnectAttempt(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(outcome(err)).Inc()
	m.connectDuration.Observe(elapsed.Seconds())
}

// ObserveHealthCheck implements app.Recorder.
func (m *Metrics) ObserveHealthCheck(result ports.HealthResult) {
	if m == nil {
		return
	}
	label := "ok"
	if !result.OK {
		label = "error"
	}
	m.healthChecks.WithLabelValues(label, strconv.FormatBool(result.Cached)).Inc()
	if !result.Cached {
		m.healthLatency.Observe((time.Duration(result.LatencyMs) * time.Millisecond).Seconds())
	}
}

// ObserveSend implements app.Recorder.
func (m *Metrics) ObserveSend(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(outcome(err)).Inc()
	m.sendDuration.Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records one served request. route is the matched route
// pattern, never the raw path.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejects.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
