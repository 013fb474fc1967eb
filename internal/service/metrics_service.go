package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic
// and the delivery lifecycle.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	deliveriesSubmitted *prometheus.CounterVec
	reviewDecisions     *prometheus.CounterVec
	versionConflicts    prometheus.Counter
	rejectedActions     *prometheus.CounterVec
	eventFailures       prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	deliveriesSubmitted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliveries_submitted_total",
		Help: "Deliveries recorded in the ledger by scope kind",
	}, []string{"scope"})

	reviewDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_review_decisions_total",
		Help: "Review decisions applied to deliveries",
	}, []string{"decision"})

	versionConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_version_conflicts_total",
		Help: "Concurrent submissions that lost the version race",
	})

	rejectedActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_rejected_actions_total",
		Help: "Lifecycle actions rejected by an invariant, by error code",
	}, []string{"code"})

	eventFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_event_publish_failures_total",
		Help: "Lifecycle events that could not be published",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, deliveriesSubmitted, reviewDecisions, versionConflicts,
		rejectedActions, eventFailures, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		deliveriesSubmitted: deliveriesSubmitted,
		reviewDecisions:     reviewDecisions,
		versionConflicts:    versionConflicts,
		rejectedActions:     rejectedActions,
		eventFailures:       eventFailures,
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// IncDeliverySubmitted counts a recorded delivery.
func (m *MetricsService) IncDeliverySubmitted(batch bool) {
	if m == nil {
		return
	}
	scope := "project"
	if batch {
		scope = "batch_video"
	}
	m.deliveriesSubmitted.WithLabelValues(scope).Inc()
}

// IncReviewDecision counts approve / revision decisions.
func (m *MetricsService) IncReviewDecision(decision string) {
	if m == nil {
		return
	}
	m.reviewDecisions.WithLabelValues(decision).Inc()
}

// IncVersionConflict counts lost version races.
func (m *MetricsService) IncVersionConflict() {
	if m == nil {
		return
	}
	m.versionConflicts.Inc()
}

// IncRejectedAction counts actions blocked by a lifecycle rule.
func (m *MetricsService) IncRejectedAction(code string) {
	if m == nil {
		return
	}
	m.rejectedActions.WithLabelValues(code).Inc()
}

// IncEventPublishFailure counts events that could not be published.
func (m *MetricsService) IncEventPublishFailure() {
	if m == nil {
		return
	}
	m.eventFailures.Inc()
}
