// Package metrics exposes Prometheus collectors for the marker engine and
// the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "glow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Engine metrics
	ReadingsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glow",
		Subsystem: "engine",
		Name:      "readings_dropped_total",
		Help:      "Raw records dropped during normalization",
	}, []string{"origin"})

	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glow",
		Subsystem: "engine",
		Name:      "fetch_failures_total",
		Help:      "Failed fetches per reading source",
	}, []string{"source"})

	AllSourcesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "glow",
		Subsystem: "engine",
		Name:      "all_sources_failed_total",
		Help:      "Refreshes in which no source succeeded",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "glow",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Snapshot cache failures",
	}, []string{"operation"})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "glow",
		Subsystem: "engine",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of refreshes that fetched from the network",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	PublishedMarkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "glow",
		Subsystem: "engine",
		Name:      "published_markers",
		Help:      "Markers in the last fetched publication",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "glow",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}
