package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/nightmap/internal/pkg/metrics"
)

// deprecatedRoutes lists endpoints kept for older app builds.
var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/venues/search",
		SunsetDate:  time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/venues?q=",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Long-lived map sessions are not request-rate bound.
			return c.Path() == "/ws"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/venues", timeout.NewWithContext(ListVenuesHandler(deps), 15*time.Second))
	v1.Get("/venues/search", timeout.NewWithContext(SearchVenuesHandler(deps), 15*time.Second))
	v1.Get("/venues/batch", timeout.NewWithContext(BatchVenuesHandler(deps), 15*time.Second))
	v1.Get("/venues/:id", timeout.NewWithContext(GetVenueHandler(deps), 15*time.Second))
	v1.Get("/venues/:id/hours", timeout.NewWithContext(VenueHoursHandler(deps), 15*time.Second))
	v1.Get("/geocode", timeout.NewWithContext(GeocodeHandler(deps), 15*time.Second))
	v1.Post("/map/markers", timeout.NewWithContext(MarkersHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.SpecPath)

	// WebSocket map sessions
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(MapSessionHandler(deps)))
}
