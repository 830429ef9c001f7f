package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "freelancebill",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freelancebill",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "freelancebill",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	invoicesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "freelancebill",
			Subsystem: "invoices",
			Name:      "created_total",
			Help:      "Total number of invoices created.",
		},
	)

	overduePromotions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "freelancebill",
			Subsystem: "invoices",
			Name:      "overdue_promotions_total",
			Help:      "Total number of invoices promoted from unpaid to overdue.",
		},
	)

	authFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freelancebill",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of failed authentication attempts.",
		},
		[]string{"reason"},
	)

	mailDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "freelancebill",
			Subsystem: "mail",
			Name:      "dispatches_total",
			Help:      "Total number of mail dispatch attempts.",
		},
		[]string{"kind", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		invoicesCreated,
		overduePromotions,
		authFailures,
		mailDispatches,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordInvoiceCreated counts a successfully created invoice.
func RecordInvoiceCreated() {
	invoicesCreated.Inc()
}

// RecordOverduePromotion counts a lazy unpaid-to-overdue promotion.
func RecordOverduePromotion() {
	overduePromotions.Inc()
}

// RecordAuthFailure counts a failed authentication attempt by reason.
func RecordAuthFailure(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	authFailures.WithLabelValues(reason).Inc()
}

// RecordMailDispatch counts a mail dispatch attempt.
func RecordMailDispatch(kind string, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	mailDispatches.WithLabelValues(kind, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses ID-bearing routes so the metric label set stays
// bounded.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "verify":
		return "/verify/:token"
	case "reset-password":
		if len(parts) > 1 {
			return "/reset-password/:token"
		}
		return "/reset-password"
	case "clients":
		if len(parts) > 1 {
			return "/clients/:id"
		}
		return "/clients"
	case "invoice":
		if len(parts) == 1 {
			return "/invoice"
		}
		if parts[1] == "item" {
			return "/invoice/item/:id"
		}
		if len(parts) == 2 {
			return "/invoice/:id"
		}
		return "/invoice/:id/" + strings.Join(parts[2:], "/")
	}
	return "/" + parts[0]
}
