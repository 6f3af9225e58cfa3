package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics instruments the gin engine.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_http_requests_total",
			Help: "HTTP requests by route, method, and status.",
		}, []string{"route", "method", "status"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulseboard_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Metrics exposes application-level instruments.
type Metrics struct {
	syncRuns       *prometheus.CounterVec
	syncFailures   *prometheus.CounterVec
	syncDataPoints *prometheus.CounterVec
	oauthCallbacks *prometheus.CounterVec
	alertsCreated  *prometheus.CounterVec
	alertsMerged   *prometheus.CounterVec
	webhooks       *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		syncRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_sync_runs_total",
			Help: "Data sync runs by platform and outcome.",
		}, []string{"platform", "outcome"}),
		syncFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_sync_failures_total",
			Help: "Data sync failures by platform.",
		}, []string{"platform"}),
		syncDataPoints: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_sync_data_points_total",
			Help: "Normalized data points written per platform and category.",
		}, []string{"platform", "category"}),
		oauthCallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_oauth_callbacks_total",
			Help: "OAuth callback outcomes by platform and result code.",
		}, []string{"platform", "result"}),
		alertsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_alerts_created_total",
			Help: "Alerts created by type and severity.",
		}, []string{"type", "severity"}),
		alertsMerged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_alerts_merged_total",
			Help: "Alerts merged into an existing row inside the dedup window.",
		}, []string{"type"}),
		webhooks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pulseboard_webhooks_total",
			Help: "Inbound webhook deliveries by platform and outcome.",
		}, []string{"platform", "outcome"}),
	}
}

func (m *Metrics) IncSyncRun(platform, outcome string) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(platform, outcome).Inc()
}

func (m *Metrics) IncSyncFailure(platform string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(platform).Inc()
}

func (m *Metrics) AddSyncDataPoints(platform, category string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.syncDataPoints.WithLabelValues(platform, category).Add(float64(n))
}

func (m *Metrics) IncOAuthCallback(platform, result string) {
	if m == nil {
		return
	}
	m.oauthCallbacks.WithLabelValues(platform, result).Inc()
}

func (m *Metrics) IncAlertCreated(alertType, severity string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(alertType, severity).Inc()
}

func (m *Metrics) IncAlertMerged(alertType string) {
	if m == nil {
		return
	}
	m.alertsMerged.WithLabelValues(alertType).Inc()
}

func (m *Metrics) IncWebhook(platform, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(platform, outcome).Inc()
}

// GinMiddleware records request counters and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
