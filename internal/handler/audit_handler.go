package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// AuditHandler lists audit events for admins.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register wires the audit listing behind the given admin guards.
func (h *AuditHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/audit", Chain(guards, h.list)...)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, codeValidation, "invalid page", nil)
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, codeValidation, "invalid page size", nil)
	}

	result, err := h.service.List(c.UserContext(), dto.AuditListRequest{
		Page:     page,
		PageSize: pageSize,
		ActorID:  strings.TrimSpace(c.Query("actorId")),
		Action:   strings.TrimSpace(c.Query("action")),
		EntityID: strings.TrimSpace(c.Query("entityId")),
		Outcome:  strings.TrimSpace(c.Query("outcome")),
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list audit events")
	}

	return utils.OK(c, result.Items, "audit events retrieved", result.Pagination)
}
