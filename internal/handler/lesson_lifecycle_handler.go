package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// LessonLifecycleHandler exposes review, publish and unpublish plus the published lesson reads.
type LessonLifecycleHandler struct {
	service   service.LessonLifecycleService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLessonLifecycleHandler constructs the handler.
func NewLessonLifecycleHandler(service service.LessonLifecycleService, validate *validator.Validate, logger zerolog.Logger) *LessonLifecycleHandler {
	return &LessonLifecycleHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "lesson_lifecycle_handler").Logger(),
	}
}

// Register wires the state transitions and the published lesson reads under the lessons prefix.
func (h *LessonLifecycleHandler) Register(router fiber.Router, guards RouteGuards) {
	router.Post("/review", Chain(guards.Authenticated, h.review)...)
	router.Post("/publish", Chain(guards.Authenticated, h.publish)...)
	router.Post("/unpublish", Chain(guards.Authenticated, h.unpublish)...)
	router.Get("/published", Chain(guards.Optional, h.listPublished)...)
	router.Get("/published/:id", Chain(guards.Optional, h.getPublished)...)
}

func (h *LessonLifecycleHandler) review(c *fiber.Ctx) error {
	var req dto.ReviewLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	req.ID = strings.TrimSpace(req.ID)
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err, "invalid review payload")
	}

	var (
		result dto.ModerationResponse
		err    error
	)
	if req.Action == "approve" {
		result, err = h.service.Approve(c.UserContext(), middleware.UserID(c), req.ID)
	} else {
		result, err = h.service.Reject(c.UserContext(), middleware.UserID(c), req.ID)
	}
	if err != nil {
		return respondError(c, h.logger, err, "failed to review lesson")
	}

	return utils.SendSuccess(c, "lesson reviewed", result)
}

func (h *LessonLifecycleHandler) publish(c *fiber.Ctx) error {
	var req dto.PublishLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.Publish(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to publish lesson")
	}

	return utils.SendSuccess(c, "lesson published", result)
}

func (h *LessonLifecycleHandler) unpublish(c *fiber.Ctx) error {
	var req dto.UnpublishLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.Unpublish(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to unpublish lesson")
	}

	return utils.SendSuccess(c, "lesson unpublished", result)
}

func (h *LessonLifecycleHandler) listPublished(c *fiber.Ctx) error {
	var filter dto.PublishedLessonFilter
	if err := c.QueryParser(&filter); err != nil {
		return invalidPayload(c)
	}

	lessons, err := h.service.ListPublished(c.UserContext(), filter)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list lessons")
	}

	return utils.SendSuccess(c, "lessons retrieved", lessons)
}

func (h *LessonLifecycleHandler) getPublished(c *fiber.Ctx) error {
	lesson, err := h.service.GetPublished(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load lesson")
	}

	return utils.SendSuccess(c, "lesson retrieved", lesson)
}
