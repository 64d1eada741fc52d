package metrics

import (
	"strconv"
	"strings"
	"sync"
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
		Namespace: "nightmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nightmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nightmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Map metrics
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Total geocode requests sent to the provider",
	}, []string{"result"})

	GeocodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nightmap",
		Subsystem: "geocode",
		Name:      "request_duration_seconds",
		Help:      "Latency of geocode provider requests",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	StaleGeocodeResults = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "markers",
		Name:      "stale_geocode_results_total",
		Help:      "Geocode results dropped because the venue list changed first",
	})

	StatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "hours",
		Name:      "status_changes_total",
		Help:      "Venue hours status transitions published",
	}, []string{"status"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_empty_acquires_total",
		Help:      "Acquires that had to wait for a connection to be opened or released",
	})

	DBPoolAcquires = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_acquires_total",
		Help:      "Successful connection acquires from the database pool",
	})

	DBPoolAcquireSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nightmap",
		Subsystem: "db",
		Name:      "pool_acquire_seconds_total",
		Help:      "Total time spent acquiring database connections",
	})
)

// normalizePath reduces path cardinality for metrics by replacing IDs with :id.
func normalizePath(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready" || path == "/v1/venues" ||
		path == "/v1/map/markers" || path == "/v1/geocode" ||
		path == "/graphql" || path == "/metrics":
		return path
	case strings.HasPrefix(path, "/v1/venues/"):
		if strings.HasSuffix(path, "/hours") {
			return "/v1/venues/:id/hours"
		}
		return "/v1/venues/:id"
	default:
		return path
	}
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = normalizePath(c.Path())
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

// PoolStat is the part of *pgxpool.Stat the pool metrics read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	EmptyAcquireCount() int64
	AcquireCount() int64
	AcquireDuration() time.Duration
}

var (
	poolMu   sync.Mutex
	poolPrev struct {
		empty, acquires int64
		wait            time.Duration
	}
)

// UpdateDBPoolMetrics copies a pool snapshot into the pool gauges and
// advances the counters by the growth since the previous snapshot.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))

	poolMu.Lock()
	defer poolMu.Unlock()
	if d := s.EmptyAcquireCount() - poolPrev.empty; d > 0 {
		DBPoolEmptyAcquires.Add(float64(d))
	}
	if d := s.AcquireCount() - poolPrev.acquires; d > 0 {
		DBPoolAcquires.Add(float64(d))
	}
	if d := s.AcquireDuration() - poolPrev.wait; d > 0 {
		DBPoolAcquireSeconds.Add(d.Seconds())
	}
	poolPrev.empty = s.EmptyAcquireCount()
	poolPrev.acquires = s.AcquireCount()
	poolPrev.wait = s.AcquireDuration()
}
