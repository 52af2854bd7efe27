package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/routecast/internal/adapters/background"
	"github.com/samirrijal/routecast/internal/adapters/chart"
	"github.com/samirrijal/routecast/internal/adapters/fitfile"
	"github.com/samirrijal/routecast/internal/adapters/http"
	"github.com/samirrijal/routecast/internal/adapters/memstore"
	natsadapter "github.com/samirrijal/routecast/internal/adapters/nats"
	"github.com/samirrijal/routecast/internal/adapters/postgres"
	"github.com/samirrijal/routecast/internal/adapters/raster"
	"github.com/samirrijal/routecast/internal/adapters/sink"
	"github.com/samirrijal/routecast/internal/adapters/valkey"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/usecases"
	"github.com/samirrijal/routecast/internal/pkg/config"
	"github.com/samirrijal/routecast/internal/pkg/logging"
	"github.com/samirrijal/routecast/internal/pkg/telemetry"
	"github.com/samirrijal/routecast/internal/workflows"
)

func main() {
	cfg, err := config.Load("routecast-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database (job history)
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// Valkey: lap chart cache, staged async inputs, and optionally artifacts
	var cache *valkey.Cache
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vk.Close()
		cache = valkey.NewCache(vk, "routecast:")
	}

	var artifacts ports.ArtifactStore
	artifactTTL := time.Duration(cfg.Valkey.ArtifactTTL) * time.Second
	switch {
	case cfg.Render.Store == "valkey" && vk != nil:
		artifacts = valkey.NewArtifactStore(vk, artifactTTL)
	case cfg.Render.Store == "valkey":
		log.Fatalf("render.store is valkey but valkey is unavailable")
	default:
		artifacts = memstore.New(artifactTTL)
	}

	// NATS: job events and the WebSocket relay
	var publisher ports.EventPublisher
	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	decoder := fitfile.NewDecoder()
	renderSvc := usecases.NewRenderService(
		decoder,
		background.NewLoader(background.WithMaxPixels(cfg.Render.MaxBackgroundPixels)),
		raster.NewFactory(),
		sink.Factory{Quality: cfg.Render.JPEGQuality},
		artifacts,
		postgres.NewJobRepo(db),
		publisher,
		usecases.RenderOptions{
			MaxBackgroundSide: cfg.Render.MaxBackgroundSide,
			FPSDivisor:        cfg.Render.FPSDivisor,
			StreamAbovePoints: cfg.Render.StreamAbovePoints,
		},
		logger,
	)

	var chartCache ports.CacheService
	if cache != nil {
		chartCache = cache
	}
	chartSvc := usecases.NewChartService(decoder, chart.New(), chartCache, cfg.Valkey.ChartTTL)

	deps := &http.Dependencies{
		Render:        renderSvc,
		Charts:        chartSvc,
		NATS:          nc,
		DB:            db,
		JWTSecret:     cfg.Server.JWTSecret,
		RenderTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		DefaultPreset: cfg.Render.DefaultPreset,
	}
	if cache != nil {
		deps.Cache = cache
	}

	// Async renders need a worker that can read the staged inputs and
	// write artifacts the API can serve.
	if cache != nil && cfg.Render.Store == "valkey" {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, async renders disabled", "error", err)
		} else {
			defer tc.Close()
			deps.Dispatcher = workflows.NewDispatcher(tc, cache, cfg.Temporal.TaskQueue, cfg.Valkey.ArtifactTTL)
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
		AppName:      "Routecast API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "artifact_store", cfg.Render.Store, "async", deps.Dispatcher != nil)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Renders in flight get as long as a write may take.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.WriteTimeout)*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
