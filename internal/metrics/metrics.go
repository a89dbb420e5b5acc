// Package metrics exposes Prometheus metrics for the bot and its ops server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "expensebot"

type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	commandsTotal   *prometheus.CounterVec
	expensesLogged  *prometheus.CounterVec
	amountLogged    prometheus.Counter
	warningsTotal   *prometheus.CounterVec
	pendingExpired  prometheus.Counter
	pending         prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served by the ops server, by route and status.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Ops server request duration by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands handled, by command and outcome.",
		}, []string{"command", "outcome"}),
		expensesLogged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expenses_logged_total",
			Help:      "Expenses appended to a ledger, by type.",
		}, []string{"type"}),
		amountLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_amount_cents_total",
			Help:      "Sum of logged expense amounts in cents.",
		}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_warnings_total",
			Help:      "Non-fatal ledger failures (formatting, formula re-assertion), by operation.",
		}, []string{"operation"}),
		pendingExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_selections_expired_total",
			Help:      "Pending category selections dropped by expiry or capacity.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_selections",
			Help:      "Expenses waiting for a category selection.",
		}),
	}
	registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.commandsTotal, m.expensesLogged,
		m.amountLogged, m.warningsTotal, m.pendingExpired, m.pending,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and duration per chi route pattern.
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

func (m *Metrics) Command(command, outcome string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ExpenseLogged(expenseType string, cents int64) {
	if m == nil {
		return
	}
	if expenseType == "" {
		expenseType = "none"
	}
	m.expensesLogged.WithLabelValues(expenseType).Inc()
	m.amountLogged.Add(float64(cents))
}

func (m *Metrics) Warnings(operation string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.warningsTotal.WithLabelValues(operation).Add(float64(n))
}

func (m *Metrics) PendingExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.pendingExpired.Add(float64(n))
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
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
