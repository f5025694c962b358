package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/middleware"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/service"
	"github.com/noah-isme/skole-api/internal/utils"
)

// SpaceHandler exposes spaces, their submissions and the live submission feed.
type SpaceHandler struct {
	spaces    service.SpaceService
	feed      service.SpaceFeedService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewSpaceHandler constructs the handler.
func NewSpaceHandler(spaces service.SpaceService, feed service.SpaceFeedService, logger zerolog.Logger, keepAlive time.Duration) *SpaceHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &SpaceHandler{
		spaces:    spaces,
		feed:      feed,
		logger:    logger.With().Str("component", "space_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the space routes. Joining and submitting work without a token.
func (h *SpaceHandler) Register(router fiber.Router, guards RouteGuards, create authz.Requirement) {
	router.Get("/join/:code", Chain(guards.Limited, h.join)...)
	router.Post("/:id/lessons/:lessonId/submissions", Chain(Chain(guards.Optional, guards.Limited...), h.submit)...)

	router.Post("", Chain(guards.Authenticated, middleware.WithAuth(h.create, middleware.AuthOptions{Requirement: create}))...)
	router.Get("", Chain(guards.Authenticated, h.listMine)...)
	router.Patch("/:id", Chain(guards.Authenticated, h.update)...)
	router.Get("/:id/submissions", Chain(guards.Authenticated, h.listSubmissions)...)
	router.Patch("/:id/submissions/:submissionId/answers", Chain(guards.Authenticated, h.updateAnswers)...)
	router.Patch("/:id/submissions/:submissionId/review", Chain(guards.Authenticated, h.review)...)
	router.Get("/:id/stream", Chain(guards.Authenticated, h.stream)...)
	router.Get("/:id/ws", Chain(guards.Authenticated, h.upgrade, websocket.New(h.handleConnection))...)
}

func (h *SpaceHandler) create(c *fiber.Ctx) error {
	var req dto.SpaceCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	space, err := h.spaces.CreateSpace(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create space")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "space created", space)
}

func (h *SpaceHandler) listMine(c *fiber.Ctx) error {
	spaces, err := h.spaces.ListMine(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list spaces")
	}

	return utils.SendSuccess(c, "spaces retrieved", spaces)
}

func (h *SpaceHandler) update(c *fiber.Ctx) error {
	var req dto.SpaceUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	space, err := h.spaces.UpdateSpace(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update space")
	}

	return utils.SendSuccess(c, "space updated", space)
}

func (h *SpaceHandler) join(c *fiber.Ctx) error {
	joined, err := h.spaces.JoinByCode(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to join space")
	}

	return utils.SendSuccess(c, "space joined", joined)
}

func (h *SpaceHandler) submit(c *fiber.Ctx) error {
	var req dto.SubmitAnswersRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.spaces.Submit(c.UserContext(), c.Params("id"), c.Params("lessonId"), req, middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to record submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", submission)
}

func (h *SpaceHandler) updateAnswers(c *fiber.Ctx) error {
	var req dto.SubmitAnswersRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.spaces.UpdateAnswers(c.UserContext(), c.Params("id"), c.Params("submissionId"), req, middleware.IdentityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to update submission")
	}

	return utils.SendSuccess(c, "submission updated", submission)
}

func (h *SpaceHandler) review(c *fiber.Ctx) error {
	var req dto.ReviewSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(c)
	}

	submission, err := h.spaces.Review(c.UserContext(), middleware.UserID(c), c.Params("id"), c.Params("submissionId"), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to review submission")
	}

	return utils.SendSuccess(c, "submission reviewed", submission)
}

func (h *SpaceHandler) listSubmissions(c *fiber.Ctx) error {
	submissions, err := h.spaces.ListSubmissions(c.UserContext(), middleware.UserID(c), c.Params("id"), c.Query("lessonId"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list submissions")
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SpaceHandler) stream(c *fiber.Ctx) error {
	spaceID := c.Params("id")
	if err := h.spaces.AuthorizeFeed(c.UserContext(), middleware.UserID(c), spaceID); err != nil {
		return respondError(c, h.logger, err, "failed to open space stream")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(observability.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
	events, cleanup := h.feed.Subscribe(spaceID)
	keepAlive := h.keepAlive
	logger := h.logger.With().Str("space_id", spaceID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		if err := writeKeepAlive(w); err != nil {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeSpaceEvent(w, event); err != nil {
					logger.Debug().Err(err).Msg("space stream closed while writing event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("space stream closed during keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

// upgrade authorizes the feed before the websocket handshake completes.
func (h *SpaceHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.Fail(c, fiber.StatusUpgradeRequired, codeValidation, "websocket upgrade required", nil)
	}
	if err := h.spaces.AuthorizeFeed(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, h.logger, err, "failed to open space socket")
	}
	return c.Next()
}

func (h *SpaceHandler) handleConnection(conn *websocket.Conn) {
	spaceID := conn.Params("id")
	events, cleanup := h.feed.Subscribe(spaceID)
	defer cleanup()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	h.logger.Info().Str("space_id", spaceID).Msg("space websocket connected")
	defer h.logger.Info().Str("space_id", spaceID).Msg("space websocket disconnected")

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeSpaceEvent(w *bufio.Writer, event dto.SpaceEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
