package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// DependencyCheck probes one backing service. A nil Ping marks the dependency as not
// configured, which does not affect readiness.
type DependencyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	service string
	version string
	checks  []DependencyCheck
}

// NewHealthHandler builds the handler over the given dependency checks.
func NewHealthHandler(service, version string, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{service: service, version: version, checks: checks}
}

// Live GET /health/live.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "alive", "service": h.service, "version": h.version})
}

// Ready GET /health/ready. Every configured dependency must answer within two seconds.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	deps := make(fiber.Map, len(h.checks))
	failed := false
	for _, check := range h.checks {
		switch {
		case check.Ping == nil:
			deps[check.Name] = "disabled"
		case check.Ping(ctx) != nil:
			deps[check.Name] = "unreachable"
			failed = true
		default:
			deps[check.Name] = "ok"
		}
	}

	if failed {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": deps,
		}})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": deps})
}
