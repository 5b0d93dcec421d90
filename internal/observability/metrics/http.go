package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const namespace = "docflow"

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	backendCallsTotal   *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec
	transformsTotal     *prometheus.CounterVec
	transformDuration   *prometheus.HistogramVec
	exportsTotal        *prometheus.CounterVec
	keyActionsTotal     *prometheus.CounterVec
	backendRetries      *prometheus.CounterVec
	breakerState        *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	backendCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Total calls to the transform backend by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	backendCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Transform backend call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "operation"},
	)
	transformsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "requests_total",
			Help:      "Total finished transform submissions by mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	transformDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "duration_seconds",
			Help:      "Transform submission duration in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "mode"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "downloads_total",
			Help:      "Total export downloads by format and status.",
		},
		[]string{"service", "format", "status"},
	)
	keyActionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keys",
			Name:      "actions_total",
			Help:      "Total API-key actions by kind.",
		},
		[]string{"service", "action"},
	)

	backendRetries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "retries_total",
			Help:      "Backend calls repeated after a retryable failure.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "breaker_open",
			Help:      "1 while the operation's circuit breaker is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		backendCallsTotal,
		backendCallDuration,
		transformsTotal,
		transformDuration,
		exportsTotal,
		keyActionsTotal,
		backendRetries,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		service:             service,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		backendCallsTotal:   backendCallsTotal,
		backendCallDuration: backendCallDuration,
		transformsTotal:     transformsTotal,
		transformDuration:   transformDuration,
		exportsTotal:        exportsTotal,
		keyActionsTotal:     keyActionsTotal,
		backendRetries:      backendRetries,
		breakerState:        breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath folds key ids into one label value; mode segments are a
// closed set and stay as they are.
func normalizePath(path string) string {
	if rest, ok := strings.CutPrefix(path, "/v1/keys/"); ok && rest != "" {
		if _, action, found := strings.Cut(rest, "/"); found {
			return "/v1/keys/{id}/" + action
		}
		return "/v1/keys/{id}"
	}
	return path
}

// ObserveBackendCall records one call made through the authenticated client.
// A status of zero means no response was received.
func (m *HTTPServerMetrics) ObserveBackendCall(operation string, status int, duration time.Duration, err error) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "error"
		if err != nil && errors.Is(err, domain.ErrAuthentication) {
			label = "unauthenticated"
		}
	}
	m.backendCallsTotal.WithLabelValues(m.service, operation, label).Inc()
	m.backendCallDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordTransform(mode domain.Mode, duration time.Duration, err error) {
	outcome := "succeeded"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrValidation):
		outcome = "rejected"
	default:
		outcome = "failed"
	}
	m.transformsTotal.WithLabelValues(m.service, string(mode), outcome).Inc()
	m.transformDuration.WithLabelValues(m.service, string(mode)).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) RecordExport(format string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrExport):
		status = "no_data"
	default:
		status = "error"
	}
	m.exportsTotal.WithLabelValues(m.service, format, status).Inc()
}

func (m *HTTPServerMetrics) RecordKeyAction(action string) {
	if action == "" {
		action = "unknown"
	}
	m.keyActionsTotal.WithLabelValues(m.service, action).Inc()
}

func (m *HTTPServerMetrics) RecordRetry(operation string) {
	m.backendRetries.WithLabelValues(m.service, operation).Inc()
}

// RecordBreakerState treats half-open as open until a probe succeeds.
func (m *HTTPServerMetrics) RecordBreakerState(operation, state string) {
	value := 1.0
	if state == "closed" {
		value = 0
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
