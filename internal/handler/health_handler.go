package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/config"
	"github.com/noah-isme/skole-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies"`
}

// HealthCheck returns a handler that reports application health and the reachability of its stores.
// A nil dependency is reported as disabled.
func HealthCheck(cfg config.Config, db *gorm.DB, redisClient *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		payload := HealthResponse{
			Status:       "ok",
			Timestamp:    time.Now().UTC(),
			Service:      cfg.AppName,
			Environment:  cfg.AppEnv,
			Dependencies: map[string]string{"database": "disabled", "redis": "disabled"},
		}

		if db != nil {
			payload.Dependencies["database"] = "ok"
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				payload.Dependencies["database"] = "unreachable"
				payload.Status = "degraded"
			}
		}

		if redisClient != nil {
			payload.Dependencies["redis"] = "ok"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				payload.Dependencies["redis"] = "unreachable"
				payload.Status = "degraded"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
