// Package metrics registers Prometheus collectors for the portal.
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
	// Registry holds the portal-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bluecarbon",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluecarbon",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bluecarbon",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	walletChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluecarbon",
			Subsystem: "wallet",
			Name:      "status_checks_total",
			Help:      "Total number of wallet status checks.",
		},
		[]string{"result"},
	)

	walletRegistrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bluecarbon",
			Subsystem: "wallet",
			Name:      "registrations_total",
			Help:      "Total number of wallet registrations.",
		},
	)

	gateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluecarbon",
			Subsystem: "gate",
			Name:      "transitions_total",
			Help:      "Total number of wallet gate state transitions.",
		},
		[]string{"to"},
	)

	proposalSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bluecarbon",
			Subsystem: "proposals",
			Name:      "submissions_total",
			Help:      "Total number of project proposal submissions.",
		},
		[]string{"status"},
	)

	proposalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bluecarbon",
			Subsystem: "proposals",
			Name:      "submission_duration_seconds",
			Help:      "Duration of proposal submissions including datastore insert.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bluecarbon",
			Subsystem: "wallet",
			Name:      "cache_entries",
			Help:      "Current number of cached wallet status entries.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		walletChecks,
		walletRegistrations,
		gateTransitions,
		proposalSubmissions,
		proposalDuration,
		cacheEntries,
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

// RecordWalletCheck records the outcome of a wallet status check.
// result is one of "connected", "missing", "error".
func RecordWalletCheck(result string) {
	walletChecks.WithLabelValues(result).Inc()
}

// RecordWalletRegistration records a successful wallet registration.
func RecordWalletRegistration() {
	walletRegistrations.Inc()
}

// RecordGateTransition records a gate state transition.
func RecordGateTransition(to string) {
	gateTransitions.WithLabelValues(to).Inc()
}

// RecordProposalSubmission records a proposal submission outcome.
func RecordProposalSubmission(status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	proposalSubmissions.WithLabelValues(status).Inc()
	proposalDuration.Observe(duration.Seconds())
}

// SetCacheEntries sets the wallet cache size gauge.
func SetCacheEntries(n float64) {
	cacheEntries.Set(n)
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

// canonicalPath collapses resource IDs so metric label cardinality stays
// bounded.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "api" {
		// /api/v1/<resource>[/<id>...]
		if len(parts) == 3 {
			return "/" + strings.Join(parts[:3], "/")
		}
		return "/" + strings.Join(parts[:3], "/") + "/:id"
	}
	return "/" + parts[0]
}
