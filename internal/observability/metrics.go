package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tuition_billing/internal/models"
)

type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	DelinquencyDuration prometheus.Histogram
	StatsCacheTotal     *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates and registers the billing metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_decisions_total",
				Help: "Payment transaction status changes by target status and result",
			},
			[]string{"status", "result"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_notifications_total",
				Help: "Decision notifications by outcome",
			},
			[]string{"result"},
		),
		DelinquencyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billing_delinquency_duration_seconds",
				Help:    "Time spent computing unpaid fee sets",
				Buckets: prometheus.DefBuckets,
			},
		),
		StatsCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_stats_cache_total",
				Help: "Monthly stats cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_http_requests_total",
				Help: "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		gatherer: registry,
	}

	registry.MustRegister(
		m.DecisionsTotal,
		m.NotificationsTotal,
		m.DelinquencyDuration,
		m.StatsCacheTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) ObserveDelinquency(d time.Duration) {
	m.DelinquencyDuration.Observe(d.Seconds())
}

func (m *Metrics) Decision(status models.TransactionStatus, result string) {
	m.DecisionsTotal.WithLabelValues(string(status), result).Inc()
}

func (m *Metrics) Notification(result models.NotificationStatus) {
	m.NotificationsTotal.WithLabelValues(string(result)).Inc()
}

func (m *Metrics) StatsCache(result string) {
	m.StatsCacheTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by their mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
