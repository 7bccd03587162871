package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// StatusInfo is the static readiness snapshot reported by GET /status.
type StatusInfo struct {
	Version           string
	ProjectID         string
	CredentialsLoaded bool
	VAPIDPublicKey    string
}

// RegisterHealthRoutes wires liveness, readiness and the status snapshot.
// rdb may be nil when no Redis is configured.
func RegisterHealthRoutes(app fiber.Router, info StatusInfo, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(rdb))
	app.Get("/status", StatusHandler(info))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		status := "ready"
		statusCode := fiber.StatusOK

		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
			defer cancel()

			redisStatus := "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
				status = "not_ready"
				statusCode = fiber.StatusServiceUnavailable
			}
			checks["redis"] = redisStatus
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

// StatusHandler reports gateway readiness with no side effects: version,
// project, whether credentials are loaded, and the VAPID public key the
// client needs to subscribe.
func StatusHandler(info StatusInfo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":            "ok",
			"version":           info.Version,
			"api":               "FCM HTTP v1",
			"project":           info.ProjectID,
			"credentialsLoaded": info.CredentialsLoaded,
			"vapidPublicKey":    info.VAPIDPublicKey,
			"timestamp":         time.Now().UTC().Format(time.RFC3339),
		})
	}
}
