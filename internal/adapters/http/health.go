package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Version is reported by the health endpoint.
var Version = "dev"

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "routecast",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": Version,
			"async":   deps.Dispatcher != nil,
		})
	}
}

// readyCheck probes one backend. A nil probe means the backend is not
// configured, which does not fail readiness.
type readyCheck struct {
	name  string
	probe func(ctx context.Context) error
}

func readyChecks(deps *Dependencies) []readyCheck {
	checks := []readyCheck{{name: "database"}, {name: "nats"}, {name: "cache"}}
	if deps.DB != nil {
		checks[0].probe = func(ctx context.Context) error { return deps.DB.Pool.Ping(ctx) }
	}
	if deps.NATS != nil {
		checks[1].probe = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].probe = func(ctx context.Context) error {
			// A missing key still proves the round trip.
			_, err := deps.Cache.Get(ctx, "__ready__")
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
	}
	return checks
}

// ReadyHandler reports whether every configured backend answers.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readyChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			switch {
			case chk.probe == nil:
				results[chk.name] = "not configured"
			default:
				if err := chk.probe(ctx); err != nil {
					results[chk.name] = "error: " + err.Error()
					ready = false
					continue
				}
				results[chk.name] = "ok"
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
