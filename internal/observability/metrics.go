package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/bizcore/internal/jobs"
	"github.com/odyssey-erp/bizcore/internal/payroll"
)

// Metrics collects the Prometheus metrics of the application.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	stockReservations *prometheus.CounterVec
	payrollPayments   *prometheus.CounterVec
	payrollRunItems   *prometheus.CounterVec
	jobs              *jobmetrics.Metrics
}

// NewMetrics initialises the registry with HTTP, domain and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizcore_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bizcore_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizcore_stock_reservations_total",
		Help: "Stock reservation outcomes for invoice lines.",
	}, []string{"result"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizcore_payroll_payments_total",
		Help: "Salary payment attempts by result.",
	}, []string{"result"})
	runItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizcore_payroll_run_items_total",
		Help: "Employees processed by payroll runs by item status.",
	}, []string{"status"})
	registry.MustRegister(requests, duration, reservations, payments, runItems)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		stockReservations: reservations,
		payrollPayments:   payments,
		payrollRunItems:   runItems,
		jobs:              jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
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

// ObserveStockReservation counts one reservation outcome.
func (m *Metrics) ObserveStockReservation(result string) {
	if m == nil {
		return
	}
	m.stockReservations.WithLabelValues(result).Inc()
}

// ObservePayrollPayment counts one salary payment attempt.
func (m *Metrics) ObservePayrollPayment(result string) {
	if m == nil {
		return
	}
	m.payrollPayments.WithLabelValues(result).Inc()
}

// ObservePayrollRun counts the items of a finished payroll run.
func (m *Metrics) ObservePayrollRun(result payroll.RunResult) {
	if m == nil {
		return
	}
	m.payrollRunItems.WithLabelValues(string(payroll.RunItemPaid)).Add(float64(result.Paid))
	m.payrollRunItems.WithLabelValues(string(payroll.RunItemSkipped)).Add(float64(result.Skipped))
	m.payrollRunItems.WithLabelValues(string(payroll.RunItemFailed)).Add(float64(result.Failed))
}

// Jobs exposes the background job metrics registered on the same registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
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
