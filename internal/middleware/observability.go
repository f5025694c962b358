package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/observability"
)

// auditedPrefixes are the routes whose state-changing requests are always logged.
var auditedPrefixes = []string{"/api/admin", "/api/v1/lessons/review", "/api/v1/lessons/publish", "/api/v1/lessons/unpublish", "/api/v1/profile/apply"}

// Observability records request metrics for every route except the scrape endpoint itself. Server
// errors are logged everywhere; audited routes also log their successful writes.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.HTTPLatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case audited(c.Path()) && status >= fiber.StatusBadRequest:
			event = logger.Warn()
		case audited(c.Path()) && method != fiber.MethodGet:
			event = logger.Info()
		default:
			return err
		}

		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("uid", UserID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Msg("request handled")

		return err
	}
}

func audited(path string) bool {
	for _, prefix := range auditedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" {
		return route.Path
	}
	return c.Path()
}
