// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collector_hub",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector_hub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collector_hub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	// OfferTransitions counts offers entering each status.
	OfferTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector_hub",
			Subsystem: "marketplace",
			Name:      "offer_transitions_total",
			Help:      "Offers entering each status.",
		},
		[]string{"status"},
	)

	// OrderTransitions counts orders entering each status.
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector_hub",
			Subsystem: "marketplace",
			Name:      "order_transitions_total",
			Help:      "Orders entering each status.",
		},
		[]string{"status"},
	)

	// LookupCache counts card lookup cache results by tier.
	LookupCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector_hub",
			Subsystem: "cardlookup",
			Name:      "cache_results_total",
			Help:      "Card lookup cache hits and misses by tier.",
		},
		[]string{"tier", "result"},
	)

	// LookupUpstream counts provider calls by provider and outcome.
	LookupUpstream = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collector_hub",
			Subsystem: "cardlookup",
			Name:      "upstream_requests_total",
			Help:      "Third-party card API calls.",
		},
		[]string{"provider", "outcome"},
	)

	// RealtimeSubscribers is the number of live realtime subscriptions.
	RealtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "collector_hub",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Live realtime subscriptions.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		OfferTransitions,
		OrderTransitions,
		LookupCache,
		LookupUpstream,
		RealtimeSubscribers,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
