// Package metrics holds the Prometheus collectors for the notification
// service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for NotificationsTotal.
const (
	OutcomeSent      = "sent"
	OutcomeSkipped   = "skipped"
	OutcomeMissing   = "missing_dependent"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	NotificationsTotal *prometheus.CounterVec
	EmailSendDuration  *prometheus.HistogramVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers every collector on reg. A nil reg gets a fresh registry,
// which is what tests want.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unitrade_notifications_total",
				Help: "Trigger deliveries handled, by notifier and outcome",
			},
			[]string{"notifier", "outcome"},
		),
		EmailSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unitrade_email_send_duration_seconds",
				Help:    "Duration of SMTP sends",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"notifier"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "unitrade_http_requests_total",
				Help: "HTTP requests served, by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "unitrade_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.NotificationsTotal,
		m.EmailSendDuration,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
	)
	return m
}

// Observe records one handled delivery.
func (m *Metrics) Observe(notifier, outcome string) {
	m.NotificationsTotal.WithLabelValues(notifier, outcome).Inc()
}

// ObserveSend records how long one SMTP send took.
func (m *Metrics) ObserveSend(notifier string, d time.Duration) {
	m.EmailSendDuration.WithLabelValues(notifier).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts and times every request by its chi route pattern, so
// path parameters do not explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
