package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	datesGenerated     prometheus.Counter
	versionActivations *prometheus.CounterVec
	assignmentBatches  *prometheus.CounterVec
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	datesGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_payroll_dates_generated_total",
		Help: "Payroll dates persisted by the generation engine.",
	})
	activations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_version_activations_total",
		Help: "Version activation sweep outcomes per family.",
	}, []string{"action"})
	batches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_assignment_batches_total",
		Help: "Assignment commit batches by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, datesGenerated, activations, batches)
	return &Metrics{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:      requests,
		requestDuration:    duration,
		datesGenerated:     datesGenerated,
		versionActivations: activations,
		assignmentBatches:  batches,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveDatesGenerated counts persisted payroll dates.
func (m *Metrics) ObserveDatesGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.datesGenerated.Add(float64(n))
}

// ObserveActivation counts one family activation outcome.
func (m *Metrics) ObserveActivation(action string) {
	if m == nil {
		return
	}
	m.versionActivations.WithLabelValues(action).Inc()
}

// ObserveAssignmentBatch counts one commit batch outcome.
func (m *Metrics) ObserveAssignmentBatch(success bool) {
	if m == nil {
		return
	}
	outcome := "committed"
	if !success {
		outcome = "rejected"
	}
	m.assignmentBatches.WithLabelValues(outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
