package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// ProfileHandler exposes the self-heal and role application endpoints.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register wires the caller-facing profile routes. The router must already require a bearer token.
func (h *ProfileHandler) Register(router fiber.Router) {
	router.Post("/ensure", h.ensure)
	router.Get("/me", h.me)
	router.Post("/apply", h.apply)
}

// RegisterAdmin wires the admin decision route behind the given admin guards.
func (h *ProfileHandler) RegisterAdmin(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/profiles/:uid/decision", Chain(guards, h.decide)...)
}

func (h *ProfileHandler) ensure(c *fiber.Ctx) error {
	var req dto.EnsureProfileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidPayload(c)
		}
	}

	profile, err := h.service.EnsureProfile(c.UserContext(), middleware.IdentityFrom(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to ensure profile")
	}

	return utils.SendSuccess(c, "profile ensured", profile)
}

func (h *ProfileHandler) me(c *fiber.Ctx) error {
	me, err := h.service.Me(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load profile")
	}

	return utils.SendSuccess(c, "profile retrieved", me)
}

func (h *ProfileHandler) apply(c *fiber.Ctx) error {
	var req dto.ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	profile, err := h.service.Apply(c.UserContext(), middleware.IdentityFrom(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to apply")
	}

	return utils.SendSuccess(c, "application submitted", profile)
}

func (h *ProfileHandler) decide(c *fiber.Ctx) error {
	var req dto.ApplicationDecisionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	profile, err := h.service.Decide(c.UserContext(), middleware.UserID(c), strings.TrimSpace(c.Params("uid")), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record decision")
	}

	return utils.SendSuccess(c, "decision recorded", profile)
}
