package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Requirement authz.Requirement
	RequireUser bool
}

// WithAuth wraps a single handler with an authorization requirement evaluated against the
// profile attached by LoadProfile.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	requireUser := opts.RequireUser || !opts.Requirement.IsZero()

	return func(c *fiber.Ctx) error {
		if requireUser && UserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeMissingToken, "authentication required", nil)
		}

		if !authz.IsAllowed(ProfileFrom(c), opts.Requirement) {
			return utils.Fail(c, fiber.StatusForbidden, CodeUnauthorized, "insufficient permissions", nil)
		}

		return handler(c)
	}
}
