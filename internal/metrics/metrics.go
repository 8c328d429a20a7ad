// Package metrics defines the Prometheus metrics exported by the bug tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bugtracker"

// Metrics holds all collectors. Each instance owns its registry so tests
// can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authentication
	AuthAttemptsTotal   *prometheus.CounterVec
	RegistrationsTotal  *prometheus.CounterVec

	// Authorization
	PolicyDecisionsTotal *prometheus.CounterVec

	// Bugs
	BugsCreatedTotal     prometheus.Counter
	StatusChangesTotal   *prometheus.CounterVec
	RoleChangesTotal     prometheus.Counter
	UploadsRejectedTotal prometheus.Counter
}

// New creates and registers all collectors, including Go runtime and process metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		AuthAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result (success, failure).",
		}, []string{"result"}),

		RegistrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Registration attempts by result (success, invalid, duplicate, error).",
		}, []string{"result"}),

		PolicyDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Authorization decisions by action and outcome.",
		}, []string{"action", "allowed"}),

		BugsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "created_total",
			Help:      "Bug reports created.",
		}),

		StatusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bugs",
			Name:      "status_changes_total",
			Help:      "Bug status changes by target status.",
		}, []string{"status"}),

		RoleChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "users",
			Name:      "role_changes_total",
			Help:      "User role changes performed by admins.",
		}),

		UploadsRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "uploads",
			Name:      "rejected_total",
			Help:      "Attachments rejected for type or size.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthAttemptsTotal,
		m.RegistrationsTotal,
		m.PolicyDecisionsTotal,
		m.BugsCreatedTotal,
		m.StatusChangesTotal,
		m.RoleChangesTotal,
		m.UploadsRejectedTotal,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.AuthAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(result string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(result).Inc()
}

// RecordDecision counts an authorization decision.
func (m *Metrics) RecordDecision(action string, allowed bool) {
	if m == nil {
		return
	}
	m.PolicyDecisionsTotal.WithLabelValues(action, strconv.FormatBool(allowed)).Inc()
}

// RecordBugCreated counts a new bug report.
func (m *Metrics) RecordBugCreated() {
	if m == nil {
		return
	}
	m.BugsCreatedTotal.Inc()
}

// RecordStatusChange counts a status change to status.
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChangesTotal.WithLabelValues(status).Inc()
}

// RecordRoleChange counts an admin role change.
func (m *Metrics) RecordRoleChange() {
	if m == nil {
		return
	}
	m.RoleChangesTotal.Inc()
}

// RecordUploadRejected counts a rejected attachment.
func (m *Metrics) RecordUploadRejected() {
	if m == nil {
		return
	}
	m.UploadsRejectedTotal.Inc()
}

// Middleware records request counts and latency keyed by chi route pattern,
// so /bugs/{id} is one series regardless of id.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
