package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phoneverse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_feed_fetches_total",
			Help: "RSS feed fetch attempts by feed and outcome",
		},
		[]string{"feed", "outcome"},
	)

	AutomationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_automation_runs_total",
			Help: "Automation batches by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	AutomationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_automation_items_total",
			Help: "Items handled by the automation engine by result",
		},
		[]string{"result"},
	)

	AutomationRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phoneverse_automation_run_duration_seconds",
			Help:    "Automation batch duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	RewriteFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_rewrite_fallbacks_total",
			Help: "AI rewrites that degraded to the original text",
		},
		[]string{"strategy"},
	)

	ArticlesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phoneverse_articles_created_total",
			Help: "Articles persisted by origin and initial approval state",
		},
		[]string{"origin", "approval"},
	)
)

// GinMiddleware records request counts and latencies per route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
