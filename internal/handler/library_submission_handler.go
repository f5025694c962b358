package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// LibrarySubmissionHandler exposes the student library answer flow and the admin query.
type LibrarySubmissionHandler struct {
	service service.LibrarySubmissionService
	logger  zerolog.Logger
}

// NewLibrarySubmissionHandler constructs the handler.
func NewLibrarySubmissionHandler(service service.LibrarySubmissionService, logger zerolog.Logger) *LibrarySubmissionHandler {
	return &LibrarySubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "library_submission_handler").Logger(),
	}
}

// Submit records an answer to a published lesson task. Works with or without a bearer token.
func (h *LibrarySubmissionHandler) Submit(c *fiber.Ctx) error {
	var req dto.LibrarySubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.service.Submit(c.UserContext(), c.Params("id"), req, middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to record submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", submission)
}

// Update edits the caller's own unreviewed answer.
func (h *LibrarySubmissionHandler) Update(c *fiber.Ctx) error {
	var req dto.LibraryUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.service.UpdateAnswer(c.UserContext(), c.Params("id"), req, middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to update submission")
	}

	return utils.SendSuccess(c, "submission updated", submission)
}

// AdminQuery lists library submissions for holders of the shared admin token.
func (h *LibrarySubmissionHandler) AdminQuery(c *fiber.Ctx) error {
	var query dto.AdminSubmissionQuery
	if err := c.QueryParser(&query); err != nil {
		return invalidPayload(c)
	}

	items, err := h.service.AdminQuery(c.UserContext(), middleware.AdminToken(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to query submissions")
	}

	return utils.OK(c, items, "submissions retrieved", fiber.Map{"count": len(items)})
}
