package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/pkg/metrics"
)

const queryTimeout = 15 * time.Second

func withTimeout(h fiber.Handler, d time.Duration) fiber.Handler {
	if d <= 0 {
		return h
	}
	return timeout.NewWithContext(h, d)
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
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

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(legacyRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	auth := JWTMiddleware(deps.JWTSecret)

	v1 := app.Group("/v1")
	v1.Get("/presets", ListPresetsHandler())
	v1.Get("/presets/:name", GetPresetHandler())
	v1.Get("/jobs", withTimeout(ListJobsHandler(deps), queryTimeout))
	v1.Get("/jobs/:id", withTimeout(GetJobHandler(deps), queryTimeout))
	v1.Get("/downloads/:id", withTimeout(DownloadHandler(deps), queryTimeout))
	v1.Post("/render/image", auth, withTimeout(RenderHandler(deps, domain.RenderImage), deps.RenderTimeout))
	v1.Post("/render/video", auth, withTimeout(RenderHandler(deps, domain.RenderVideo), deps.RenderTimeout))
	v1.Post("/charts/laps", auth, withTimeout(LapChartHandler(deps), queryTimeout))

	// Unversioned routes of the first release, kept until legacySunset.
	app.Get("/health", HealthHandler(deps))
	app.Post("/generate-image", auth, withTimeout(RenderHandler(deps, domain.RenderImage), deps.RenderTimeout))
	app.Post("/generate-video", auth, withTimeout(RenderHandler(deps, domain.RenderVideo), deps.RenderTimeout))
	app.Get("/download-image/:id", DownloadHandler(deps))
	app.Get("/download-video/:id", DownloadHandler(deps))

	app.Post("/graphql", GraphQLHandler(deps))

	SetupDocs(app)

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
