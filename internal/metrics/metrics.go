// Package metrics provides Prometheus instrumentation for the wager bot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WagersCreated counts new wagers by category.
	WagersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_wagers_created_total",
		Help: "Total number of wagers created",
	}, []string{"category"})

	// SideJoins counts successful side claims.
	SideJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_side_joins_total",
		Help: "Total number of sides joined",
	}, []string{"side"})

	WagersActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerbot_wagers_activated_total",
		Help: "Wagers that moved from pending to active",
	})

	// VotesCast counts consensus votes by choice.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_votes_cast_total",
		Help: "Total number of consensus votes cast",
	}, []string{"choice"})

	// RequestsOpened counts explicit resolve/cancel requests.
	RequestsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_requests_opened_total",
		Help: "Consensus requests proposed",
	}, []string{"kind"})

	// Commits counts terminal transitions by outcome (A, B, cancel).
	Commits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_commits_total",
		Help: "Wagers resolved or cancelled",
	}, []string{"outcome"})

	// Rejections counts rule violations returned to users.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_rejections_total",
		Help: "Operations rejected by a wager rule",
	}, []string{"operation", "reason"})

	// OpenWagers tracks pending plus active wagers seen on the last listing.
	OpenWagers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerbot_open_wagers",
		Help: "Pending and active wagers on the last listing",
	})

	// StoreLatency tracks transaction duration by operation.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerbot_store_tx_duration_seconds",
		Help:    "Store transaction latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// NotifyFailures counts status events a sink failed to deliver.
	NotifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_notify_failures_total",
		Help: "Status events a sink failed to deliver",
	}, []string{"sink"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerbot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerbot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveSince records the time elapsed since start for operation.
func ObserveSince(operation string, start time.Time) {
	StoreLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency. pathLabel maps a request to
// a low-cardinality label, usually the matched route pattern.
func Middleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if pathLabel != nil {
				if p := pathLabel(r); p != "" {
					path = p
				}
			}
			HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
