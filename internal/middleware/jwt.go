package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// Error codes returned by the bearer token middleware.
const (
	CodeMissingToken = "MissingToken"
	CodeInvalidToken = "InvalidToken"
	CodeUnauthorized = "Unauthorized"
)

const (
	localUserID   = "user_id"
	localIdentity = "identity"
)

// JWTProtected returns a middleware that requires a valid bearer token.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, present, ok := bearerToken(c)
		if !present {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeMissingToken, "authorization header missing", nil)
		}
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeInvalidToken, "invalid authorization header", nil)
		}

		identity, err := parseIdentity(tokenString, secret)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeInvalidToken, "invalid token", nil)
		}

		storeIdentity(c, identity)
		return c.Next()
	}
}

// JWTOptional verifies a bearer token when one is presented and lets anonymous callers through.
// A malformed or expired token is still rejected.
func JWTOptional(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, present, ok := bearerToken(c)
		if !present {
			return c.Next()
		}
		if !ok {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeInvalidToken, "invalid authorization header", nil)
		}

		identity, err := parseIdentity(tokenString, secret)
		if err != nil {
			return utils.Fail(c, fiber.StatusUnauthorized, CodeInvalidToken, "invalid token", nil)
		}

		storeIdentity(c, identity)
		return c.Next()
	}
}

// IdentityFrom returns the verified caller, or nil when no token was presented.
func IdentityFrom(c *fiber.Ctx) *service.Identity {
	if identity, ok := c.Locals(localIdentity).(*service.Identity); ok {
		return identity
	}
	return nil
}

// UserID returns the verified caller uid, or an empty string.
func UserID(c *fiber.Ctx) string {
	if uid, ok := c.Locals(localUserID).(string); ok {
		return uid
	}
	return ""
}

func storeIdentity(c *fiber.Ctx, identity *service.Identity) {
	c.Locals(localUserID, identity.UID)
	c.Locals(localIdentity, identity)
}

func bearerToken(c *fiber.Ctx) (token string, present bool, ok bool) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		return "", false, false
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", true, false
	}

	token = strings.TrimSpace(authorization[len(bearer):])
	return token, true, token != ""
}

func parseIdentity(tokenString, secret string) (*service.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	uid, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("token subject missing")
	}

	return &service.Identity{
		UID:         strings.TrimSpace(uid),
		Anonymous:   anonymousClaim(claims),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
	}, nil
}

func anonymousClaim(claims jwt.MapClaims) bool {
	if value, ok := claims["anonymous"].(bool); ok && value {
		return true
	}
	if firebase, ok := claims["firebase"].(map[string]interface{}); ok {
		if provider, ok := firebase["sign_in_provider"].(string); ok {
			return provider == "anonymous"
		}
	}
	return false
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
