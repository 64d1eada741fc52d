package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a liveness check with the geocode cache size.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": "dev",
		}
		if deps.Map != nil {
			body["geocode_cache_entries"] = deps.Map.CachedAddresses()
		}
		return c.JSON(body)
	}
}

// readyCheck probes one backing service. Required checks fail readiness.
type readyCheck struct {
	name     string
	required bool
	probe    func(ctx context.Context) error // nil when not configured
}

// ReadyHandler checks DB, NATS, and cache connectivity. The database is
// required; NATS and Valkey are reported but optional.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := []readyCheck{{name: "database", required: true}, {name: "nats"}, {name: "cache"}}
	if deps.DB != nil {
		checks[0].probe = deps.DB.Ping
	}
	if deps.NATS != nil {
		checks[1].probe = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].probe = deps.Cache.Ping
	}

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for _, chk := range checks {
			switch {
			case chk.probe == nil:
				results[chk.name] = "not configured"
				ready = ready && !chk.required
			default:
				if err := chk.probe(ctx); err != nil {
					results[chk.name] = "error: " + err.Error()
					ready = false
				} else {
					results[chk.name] = "ok"
				}
			}
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
