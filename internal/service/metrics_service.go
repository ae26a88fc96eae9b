package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the assignment engine. It carries its own registry so tests
// can build instances without collector name collisions.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	plansTotal      *prometheus.CounterVec
	assignments     *prometheus.CounterVec
	relaxations     *prometheus.CounterVec
	swaps           *prometheus.CounterVec
	escalations     prometheus.Counter
	rosterHits      prometheus.Counter
	rosterMisses    prometheus.Counter
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

	plansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_plans_total",
		Help: "Planning runs by outcome",
	}, []string{"outcome"})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignments_recorded_total",
		Help: "Assignments created by selection mode",
	}, []string{"mode"})

	relaxations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_relaxations_total",
		Help: "Constraint relaxations applied during planning",
	}, []string{"constraint"})

	swaps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swaps_resolved_total",
		Help: "Swap requests resolved by outcome",
	}, []string{"outcome"})

	escalations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exam_escalations_total",
		Help: "Exams escalated for cross-department staffing",
	})

	rosterHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_hits_total",
		Help: "Roster reads served from cache",
	})

	rosterMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roster_cache_misses_total",
		Help: "Roster reads that fell through to the database",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, plansTotal, assignments,
		relaxations, swaps, escalations, rosterHits, rosterMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		plansTotal:      plansTotal,
		assignments:     assignments,
		relaxations:     relaxations,
		swaps:           swaps,
		escalations:     escalations,
		rosterHits:      rosterHits,
		rosterMisses:    rosterMisses,
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

// PlanExecuted counts one planning run.
func (m *MetricsService) PlanExecuted(success bool) {
	if m == nil {
		return
	}
	outcome := "scheduled"
	if !success {
		outcome = "escalated"
	}
	m.plansTotal.WithLabelValues(outcome).Inc()
}

// AssignmentRecorded counts one created assignment by selection mode.
func (m *MetricsService) AssignmentRecorded(mode string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(mode).Inc()
}

// RelaxationApplied counts one relaxed-constraint admission.
func (m *MetricsService) RelaxationApplied(constraint string) {
	if m == nil {
		return
	}
	m.relaxations.WithLabelValues(constraint).Inc()
}

// SwapResolved counts one resolved swap request.
func (m *MetricsService) SwapResolved(outcome string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(outcome).Inc()
}

// EscalationRaised counts one understaffed exam.
func (m *MetricsService) EscalationRaised() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

// RosterCacheLookup counts roster cache effectiveness.
func (m *MetricsService) RosterCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.rosterHits.Inc()
	} else {
		m.rosterMisses.Inc()
	}
}
