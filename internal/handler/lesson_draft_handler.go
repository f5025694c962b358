package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// LessonDraftHandler exposes draft authoring endpoints.
type LessonDraftHandler struct {
	drafts     service.LessonDraftService
	generation service.ContentGenerationService
	logger     zerolog.Logger
}

// NewLessonDraftHandler constructs the handler.
func NewLessonDraftHandler(drafts service.LessonDraftService, generation service.ContentGenerationService, logger zerolog.Logger) *LessonDraftHandler {
	return &LessonDraftHandler{
		drafts:     drafts,
		generation: generation,
		logger:     logger.With().Str("component", "lesson_draft_handler").Logger(),
	}
}

// Register wires draft routes under an authenticated router.
func (h *LessonDraftHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("", h.listMine)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.update)
	router.Post("/:id/source", h.importSource)
	router.Post("/:id/generate", h.generate)
}

func (h *LessonDraftHandler) create(c *fiber.Ctx) error {
	var req dto.LessonDraftCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	draft, err := h.drafts.Create(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create draft")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "draft created", draft)
}

func (h *LessonDraftHandler) listMine(c *fiber.Ctx) error {
	drafts, err := h.drafts.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list drafts")
	}

	return utils.SendSuccess(c, "drafts retrieved", drafts)
}

func (h *LessonDraftHandler) get(c *fiber.Ctx) error {
	draft, err := h.drafts.Get(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load draft")
	}

	return utils.SendSuccess(c, "draft retrieved", draft)
}

func (h *LessonDraftHandler) update(c *fiber.Ctx) error {
	var req dto.LessonDraftUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	draft, err := h.drafts.Update(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update draft")
	}

	return utils.SendSuccess(c, "draft updated", draft)
}

func (h *LessonDraftHandler) importSource(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, codeValidation, "file is required", nil)
	}

	draft, err := h.drafts.ImportSource(c.UserContext(), middleware.UserID(c), c.Params("id"), file)
	if err != nil {
		return respondError(c, h.logger, err, "failed to import source text")
	}

	return utils.SendSuccess(c, "source text imported", draft)
}

func (h *LessonDraftHandler) generate(c *fiber.Ctx) error {
	var req dto.GenerateTextRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	draft, err := h.generation.GenerateDraftText(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to generate text")
	}

	return utils.SendSuccess(c, "text generated", draft)
}
