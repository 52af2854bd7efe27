package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/routecast/internal/adapters/background"
	"github.com/samirrijal/routecast/internal/adapters/fitfile"
	natsadapter "github.com/samirrijal/routecast/internal/adapters/nats"
	"github.com/samirrijal/routecast/internal/adapters/postgres"
	"github.com/samirrijal/routecast/internal/adapters/raster"
	"github.com/samirrijal/routecast/internal/adapters/sink"
	"github.com/samirrijal/routecast/internal/adapters/valkey"
	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/usecases"
	"github.com/samirrijal/routecast/internal/pkg/config"
	"github.com/samirrijal/routecast/internal/pkg/logging"
	"github.com/samirrijal/routecast/internal/pkg/telemetry"
	"github.com/samirrijal/routecast/internal/workflows"
)

func main() {
	cfg, err := config.Load("routecast-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go db.ReportPoolMetrics(ctx, 15*time.Second)

	// The API reads staged inputs from and serves artifacts out of the
	// same valkey, so the worker cannot run without it.
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vk.Close()
	cache := valkey.NewCache(vk, "routecast:")
	artifacts := valkey.NewArtifactStore(vk, time.Duration(cfg.Valkey.ArtifactTTL)*time.Second)

	var publisher ports.EventPublisher
	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, job events disabled", "error", err)
	} else {
		defer nc.Close()
		pub, err := natsadapter.NewPublisher(nc)
		if err != nil {
			slog.Warn("jetstream unavailable", "error", err)
		} else {
			publisher = pub
			sub, err := natsadapter.NewSubscriber(nc, "routecast-audit")
			if err != nil {
				slog.Warn("job event audit disabled", "error", err)
			} else {
				defer sub.Close()
				if err := sub.SubscribeJobEvents(ctx, auditJobEvent(logger)); err != nil {
					slog.Warn("subscribe job events", "error", err)
				}
			}
		}
	}

	renderSvc := usecases.NewRenderService(
		fitfile.NewDecoder(),
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

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.RenderWorkflow)
	w.RegisterActivity(&workflows.RenderActivities{
		Render: renderSvc,
		Inputs: cache,
	})

	slog.Info("render worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// auditJobEvent logs terminal job events. Progress events are acked
// without logging.
func auditJobEvent(logger *slog.Logger) func(context.Context, *domain.JobEvent) error {
	return func(ctx context.Context, ev *domain.JobEvent) error {
		switch ev.Type {
		case domain.EventCompleted:
			logger.Info("job completed", "job_id", ev.JobID, "artifact_id", ev.ArtifactID)
		case domain.EventFailed:
			logger.Warn("job failed", "job_id", ev.JobID, "error", ev.Error)
		}
		return nil
	}
}
