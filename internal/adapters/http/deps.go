package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routecast/internal/adapters/postgres"
	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/usecases"
)

// RenderDispatcher hands an enqueued job to the background workers.
type RenderDispatcher interface {
	Dispatch(ctx context.Context, job *domain.RenderJob, format domain.OutputFormat, cfg domain.RenderConfig, fit, background []byte) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Render     *usecases.RenderService
	Charts     *usecases.ChartService
	Dispatcher RenderDispatcher // nil disables async renders
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      ports.CacheService
	// JWTSecret protects the render endpoints. Empty disables auth.
	JWTSecret string
	// RenderTimeout bounds synchronous renders. Zero means no limit.
	RenderTimeout time.Duration
	DefaultPreset string
}
