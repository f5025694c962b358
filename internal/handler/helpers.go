package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// Machine readable error codes carried in the envelope's error field.
const (
	codeUnauthorized     = middleware.CodeUnauthorized
	codeMissingToken     = middleware.CodeMissingToken
	codeNotOwner         = "NotOwner"
	codeDraftNotFound    = "DraftNotFound"
	codeNotFound         = "NotFound"
	codeValidation       = "ValidationError"
	codeExhaustedRetries = "ExhaustedRetries"
	codeUpstreamFailure  = "UpstreamFailure"
	codeLocked           = "Locked"
	codeSpaceClosed      = "SpaceClosed"
	codeInternal         = "InternalError"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is ordered from most to least specific.
var errorMappings = []errorMapping{
	{service.ErrAnonymousIdentity, fiber.StatusForbidden, codeUnauthorized},
	{service.ErrAuthenticationRequired, fiber.StatusUnauthorized, codeMissingToken},
	{service.ErrInvalidAdminToken, fiber.StatusUnauthorized, codeUnauthorized},
	{service.ErrNotOwner, fiber.StatusForbidden, codeNotOwner},
	{service.ErrSubmissionLocked, fiber.StatusConflict, codeLocked},
	{service.ErrSpaceClosed, fiber.StatusForbidden, codeSpaceClosed},
	{service.ErrAuthorizationDenied, fiber.StatusForbidden, codeUnauthorized},
	{service.ErrDraftNotFound, fiber.StatusNotFound, codeDraftNotFound},
	{service.ErrNotFound, fiber.StatusNotFound, codeNotFound},
	{service.ErrValidation, fiber.StatusBadRequest, codeValidation},
	{service.ErrExhaustedRetries, fiber.StatusServiceUnavailable, codeExhaustedRetries},
	{service.ErrUpstreamFailure, fiber.StatusBadGateway, codeUpstreamFailure},
}

// respondError maps a service error onto the envelope. Unknown errors are logged and hidden.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if isValidationError(err) {
		return utils.Fail(c, fiber.StatusBadRequest, codeValidation, "invalid payload", validationDetails(err))
	}

	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return utils.Fail(c, mapping.status, mapping.code, err.Error(), nil)
		}
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.Fail(c, fiber.StatusInternalServerError, codeInternal, fallback, nil)
}

func invalidPayload(c *fiber.Ctx) error {
	return utils.Fail(c, fiber.StatusBadRequest, codeValidation, "invalid request payload", nil)
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func validationDetails(err error) map[string]string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil
	}
	details := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		details[fieldErr.Field()] = fieldErr.Tag()
	}
	return details
}

// RouteGuards are the middleware chains attached per route where authenticated and anonymous
// routes share a prefix.
type RouteGuards struct {
	Authenticated []fiber.Handler
	Optional      []fiber.Handler
	Limited       []fiber.Handler
}

// Chain prepends guard middleware to route handlers.
func Chain(guards []fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	combined := make([]fiber.Handler, 0, len(guards)+len(handlers))
	combined = append(combined, guards...)
	return append(combined, handlers...)
}
