package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors for the HTTP surface and the
// dispatch engine.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	pushSentTotal       *prometheus.CounterVec
	pushFailedTotal     *prometheus.CounterVec
	pushSendDuration    *prometheus.HistogramVec
	dispatchInflight    *prometheus.GaugeVec
	tokenRefreshTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "push_gateway",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "push_gateway",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		pushSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "push_gateway",
				Name:      "push_sent_total",
				Help:      "Total number of notifications accepted by a provider, by delivery path.",
			},
			[]string{"path"},
		),
		pushFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "push_gateway",
				Name:      "push_failed_total",
				Help:      "Total number of failed deliveries by delivery path and error kind.",
			},
			[]string{"path", "kind"},
		),
		pushSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "push_gateway",
				Name:      "push_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by delivery path.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"path"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "push_gateway",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight provider sends grouped by delivery path.",
			},
			[]string{"path"},
		),
		tokenRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "push_gateway",
				Name:      "token_refresh_total",
				Help:      "Total number of OAuth token exchanges by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.pushSentTotal,
		m.pushFailedTotal,
		m.pushSendDuration,
		m.dispatchInflight,
		m.tokenRefreshTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncPushSent(path string) {
	if m == nil {
		return
	}
	m.pushSentTotal.WithLabelValues(normalizePath(path)).Inc()
}

func (m *Metrics) IncPushFailed(path string, kind string) {
	if m == nil {
		return
	}
	kindLabel := strings.TrimSpace(strings.ToLower(kind))
	if kindLabel == "" {
		kindLabel = "unknown"
	}
	m.pushFailedTotal.WithLabelValues(normalizePath(path), kindLabel).Inc()
}

func (m *Metrics) ObservePushSendDuration(path string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.pushSendDuration.WithLabelValues(normalizePath(path)).Observe(seconds)
}

func (m *Metrics) IncDispatchInflight(path string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizePath(path)).Inc()
}

func (m *Metrics) DecDispatchInflight(path string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizePath(path)).Dec()
}

func (m *Metrics) IncTokenRefresh(result string) {
	if m == nil {
		return
	}
	resultLabel := strings.TrimSpace(strings.ToLower(result))
	if resultLabel == "" {
		resultLabel = "unknown"
	}
	m.tokenRefreshTotal.WithLabelValues(resultLabel).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizePath(path string) string {
	normalized := strings.ToLower(strings.TrimSpace(path))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
