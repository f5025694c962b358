package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
	"github.com/noah-isme/skole-api/internal/utils"
)

const localProfile = "profile"

// LoadProfile attaches the caller's stored profile. Callers without a token or without a
// profile continue with no profile, which every requirement denies.
func LoadProfile(profiles repository.ProfileRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid := UserID(c)
		if uid == "" {
			return c.Next()
		}

		profile, err := profiles.Get(c.UserContext(), uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Next()
			}
			return utils.Fail(c, fiber.StatusInternalServerError, "", "failed to load profile", nil)
		}

		c.Locals(localProfile, &profile)
		return c.Next()
	}
}

// ProfileFrom returns the profile attached by LoadProfile.
func ProfileFrom(c *fiber.Ctx) *models.UserProfile {
	if profile, ok := c.Locals(localProfile).(*models.UserProfile); ok {
		return profile
	}
	return nil
}

// RequireRole ensures that the caller's profile holds one of the allowed roles.
func RequireRole(roles ...authz.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeMissingToken, "authentication required", nil)
		}

		profile := ProfileFrom(c)
		for _, role := range roles {
			if authz.IsAllowed(profile, authz.Requirement{Role: role}) {
				return c.Next()
			}
		}
		return utils.Fail(c, fiber.StatusForbidden, CodeUnauthorized, "insufficient permissions", nil)
	}
}
