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
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Map engine metrics
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Total sync runs, labelled by whether routes were rebuilt",
	}, []string{"routes_rebuilt"})

	CanvasOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "canvas",
		Name:      "ops_total",
		Help:      "Total canvas mutations applied",
	}, []string{"op"})

	LayoutInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "canvas",
		Name:      "layout_invalidations_total",
		Help:      "Total layout invalidations after coalescing",
	})

	AutoCenters = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "viewport",
		Name:      "auto_centers_total",
		Help:      "Total one-shot auto-centers on the driver",
	})

	BoundsFits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "viewport",
		Name:      "bounds_fits_total",
		Help:      "Total viewport fits to route bounds",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "session",
		Name:      "active",
		Help:      "Current number of attached map sessions",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	// Feed metrics
	UpdatesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "feed",
		Name:      "updates_ingested_total",
		Help:      "Total ride updates ingested",
	}, []string{"source"})

	UpdatesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "feed",
		Name:      "updates_dispatched_total",
		Help:      "Total updates delivered to local map sessions",
	})

	DriverDisplacement = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "livemap",
		Subsystem: "feed",
		Name:      "driver_displacement_meters",
		Help:      "Distance the driver moved between consecutive location ticks",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "feed",
		Name:      "poll_errors_total",
		Help:      "Total driver-location poll errors",
	})

	PollReadings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "feed",
		Name:      "poll_readings_total",
		Help:      "Driver-location readings seen by the poller by outcome",
	}, []string{"outcome"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livemap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livemap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	// Matched structurally so this package does not import pgxpool.
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
