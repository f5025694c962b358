package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// AdminTokenHeader carries the shared admin query secret.
const AdminTokenHeader = "X-Admin-Token"

// AdminToken extracts the shared admin secret from the header, falling back to the token query parameter.
func AdminToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get(AdminTokenHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("token"))
}
