package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/classdesk/attendance-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the attendance
// subsystem.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	marksTotal      *prometheus.CounterVec
	fallbackReads   prometheus.Counter
	changeEvents    *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	marksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_marks_total",
		Help: "Attendance mark operations by mode and persistence outcome",
	}, []string{"mode", "persisted"})

	fallbackReads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attendance_snapshot_fallback_reads_total",
		Help: "Reads served from the local snapshot because the remote store was unreachable",
	})

	changeEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_events_total",
		Help: "Change-feed signals observed, by table",
	}, []string{"table"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, marksTotal, fallbackReads, changeEvents, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		marksTotal:      marksTotal,
		fallbackReads:   fallbackReads,
		changeEvents:    changeEvents,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordMark counts a mark operation.
func (m *MetricsService) RecordMark(mode string, outcome models.PersistenceOutcome) {
	if m == nil {
		return
	}
	m.marksTotal.WithLabelValues(mode, string(outcome)).Inc()
}

// RecordFallbackRead counts a snapshot-served read.
func (m *MetricsService) RecordFallbackRead() {
	if m == nil {
		return
	}
	m.fallbackReads.Inc()
}

// RecordChangeEvent counts an observed change-feed signal.
func (m *MetricsService) RecordChangeEvent(table string) {
	if m == nil {
		return
	}
	m.changeEvents.WithLabelValues(table).Inc()
}
