package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Editorial pipeline metrics.
var (
	proposalTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "editorial_proposal_transitions_total",
			Help: "Proposal state machine transitions by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	linkRewrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_rewrites_total",
			Help: "Outbound URL rewrites by result.",
		},
		[]string{"result"},
	)

	ruleCacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_rule_cache_refreshes_total",
			Help: "Link rule cache refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		proposalTransitions, linkRewrites, ruleCacheRefreshes,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTransition records one state machine transition attempt.
func ObserveTransition(action, outcome string) {
	proposalTransitions.WithLabelValues(action, outcome).Inc()
}

// ObserveRewrite records one rewrite call; result is "rewritten",
// "passthrough" or "exception".
func ObserveRewrite(result string) {
	linkRewrites.WithLabelValues(result).Inc()
}

// ObserveRuleRefresh records one rule cache refresh; outcome is "ok" or "error".
func ObserveRuleRefresh(outcome string) {
	ruleCacheRefreshes.WithLabelValues(outcome).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
