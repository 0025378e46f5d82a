package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the platform:
// HTTP traffic, enrollment and join outcomes, feed fanout and reconciler
// activity.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	enrollments     *prometheus.CounterVec
	joins           *prometheus.CounterVec
	progressEvents  *prometheus.CounterVec
	feedDeliveries  prometheus.Counter
	feedSubscribers prometheus.Gauge
	reconcileRuns   prometheus.Counter
	reconcileMoved  prometheus.Counter
}

// NewMetricsService registers the platform's Prometheus collectors.
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

	enrollments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollments_total",
		Help: "Enrollment attempts by outcome",
	}, []string{"outcome"})

	joins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "class_joins_total",
		Help: "Class join attempts by outcome",
	}, []string{"outcome"})

	progressEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "progress_events_total",
		Help: "Progress events by result (applied or duplicate)",
	}, []string{"result"})

	feedDeliveries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "class_feed_deliveries_total",
		Help: "Schedule updates delivered to feed subscribers",
	})

	feedSubscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "class_feed_subscribers",
		Help: "Currently connected feed subscribers",
	})

	reconcileRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_reconcile_runs_total",
		Help: "Completed status reconciliation runs",
	})

	reconcileMoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_reconcile_courses_total",
		Help: "Courses whose classes were promoted by the reconciler",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollments, joins, progressEvents,
		feedDeliveries, feedSubscribers, reconcileRuns, reconcileMoved, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		enrollments:     enrollments,
		joins:           joins,
		progressEvents:  progressEvents,
		feedDeliveries:  feedDeliveries,
		feedSubscribers: feedSubscribers,
		reconcileRuns:   reconcileRuns,
		reconcileMoved:  reconcileMoved,
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

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveEnrollment records an enrollment attempt outcome.
func (m *MetricsService) ObserveEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

// ObserveJoin records a class join attempt outcome.
func (m *MetricsService) ObserveJoin(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// ObserveProgressEvent records an applied or duplicate progress event.
func (m *MetricsService) ObserveProgressEvent(result string) {
	if m == nil {
		return
	}
	m.progressEvents.WithLabelValues(result).Inc()
}

// ObserveFeedDelivery counts one subscriber delivery.
func (m *MetricsService) ObserveFeedDelivery() {
	if m == nil {
		return
	}
	m.feedDeliveries.Inc()
}

// SetFeedSubscribers tracks the current subscriber count.
func (m *MetricsService) SetFeedSubscribers(n int) {
	if m == nil {
		return
	}
	m.feedSubscribers.Set(float64(n))
}

// ObserveReconcile records one reconciler run and how many courses moved.
func (m *MetricsService) ObserveReconcile(courses int) {
	if m == nil {
		return
	}
	m.reconcileRuns.Inc()
	m.reconcileMoved.Add(float64(courses))
}
