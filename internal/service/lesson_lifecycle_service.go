package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

const (
	publishedListCacheKey = "lessons:published"
	publishedListLimit    = 200
)

// SigningConfig describes the attestation stamped on self-service publishes.
type SigningConfig struct {
	Org                string
	AttestationVersion string
}

// LessonLifecycleConfig wires the lifecycle service.
type LessonLifecycleConfig struct {
	Drafts    repository.LessonDraftRepository
	Published repository.PublishedLessonRepository
	Profiles  repository.ProfileRepository
	Audit     AuditRecorder
	Cache     *redis.Client
	CacheTTL  time.Duration
	Signing   SigningConfig
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// LessonLifecycleService drives the draft to published state machine. Cross-location writes are
// two sequential steps keyed by the lesson id: the published copy first, the draft second. Rerunning
// an operation merges the same values again.
type LessonLifecycleService interface {
	Approve(ctx context.Context, actorUID, draftID string) (dto.ModerationResponse, error)
	Reject(ctx context.Context, actorUID, draftID string) (dto.ModerationResponse, error)
	Publish(ctx context.Context, actorUID string, req dto.PublishLessonRequest) (dto.PublishResponse, error)
	Unpublish(ctx context.Context, actorUID string, req dto.UnpublishLessonRequest) (dto.UnpublishResponse, error)
	GetPublished(ctx context.Context, viewerUID, id string) (dto.PublishedLessonResponse, error)
	ListPublished(ctx context.Context, filter dto.PublishedLessonFilter) ([]dto.PublishedLessonSummary, error)
}

type lessonLifecycleService struct {
	drafts    repository.LessonDraftRepository
	published repository.PublishedLessonRepository
	profiles  repository.ProfileRepository
	audit     AuditRecorder
	cache     *redis.Client
	cacheTTL  time.Duration
	signing   SigningConfig
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewLessonLifecycleService constructs the lifecycle manager.
func NewLessonLifecycleService(cfg LessonLifecycleConfig) LessonLifecycleService {
	signing := cfg.Signing
	if signing.AttestationVersion == "" {
		signing.AttestationVersion = "v1"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	return &lessonLifecycleService{
		drafts:    cfg.Drafts,
		published: cfg.Published,
		profiles:  cfg.Profiles,
		audit:     cfg.Audit,
		cache:     cfg.Cache,
		cacheTTL:  ttl,
		signing:   signing,
		validator: cfg.Validator,
		logger:    cfg.Logger.With().Str("component", "lesson_lifecycle_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/skole-api/internal/service/lesson_lifecycle"),
		now:       time.Now,
	}
}

// decision carries one lifecycle attempt through authorization, audit and metrics.
type decision struct {
	action  string
	actorID string
	actor   *models.UserProfile
	target  string
	span    trace.Span
	meta    map[string]interface{}
}

func (s *lessonLifecycleService) begin(ctx context.Context, action, actorUID, target string) (context.Context, *decision) {
	ctx, span := s.tracer.Start(ctx, "lessons."+strings.TrimPrefix(action, "lesson."))
	span.SetAttributes(
		attribute.String("lesson.id", target),
		attribute.String("lesson.actor_id", actorUID),
	)
	return ctx, &decision{action: action, actorID: actorUID, target: target, span: span, meta: map[string]interface{}{}}
}

// block records a refused decision and returns err unchanged.
func (s *lessonLifecycleService) block(ctx context.Context, d *decision, err error) error {
	d.span.RecordError(err)
	d.span.SetStatus(codes.Error, err.Error())
	observability.LifecycleTransitions().WithLabelValues(d.action, models.AuditOutcomeBlocked).Inc()
	s.record(ctx, d, models.AuditOutcomeBlocked, reasonFor(err))
	s.logger.Warn().Err(err).Str("action", d.action).Str("lesson_id", d.target).Str("actor_id", d.actorID).Msg("lifecycle decision blocked")
	return err
}

func (s *lessonLifecycleService) succeed(ctx context.Context, d *decision, reason string) {
	observability.LifecycleTransitions().WithLabelValues(d.action, models.AuditOutcomeSucceeded).Inc()
	s.record(ctx, d, models.AuditOutcomeSucceeded, reason)
	s.invalidateList(ctx)
}

func (s *lessonLifecycleService) fail(d *decision, err error) error {
	d.span.RecordError(err)
	d.span.SetStatus(codes.Error, "write_failed")
	return err
}

func (s *lessonLifecycleService) record(ctx context.Context, d *decision, outcome, reason string) {
	if s.audit == nil {
		return
	}
	entry := AuditEntry{
		ActorID:    d.actorID,
		ActorRole:  authz.PrimaryRole(d.actor),
		Action:     d.action,
		EntityType: auditEntityLesson,
		EntityID:   d.target,
		Outcome:    outcome,
		Reason:     reason,
		Metadata:   d.meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", d.action).Msg("failed to record audit event")
	}
}

func (s *lessonLifecycleService) Approve(ctx context.Context, actorUID, draftID string) (dto.ModerationResponse, error) {
	ctx, d := s.begin(ctx, AuditActionApprove, actorUID, draftID)
	defer d.span.End()

	if err := s.requireAdmin(ctx, d); err != nil {
		return dto.ModerationResponse{}, err
	}

	draft, location, err := s.locateDraft(ctx, draftID)
	if err != nil {
		return dto.ModerationResponse{}, s.block(ctx, d, err)
	}
	d.meta["location"] = location
	if err := requireContent(draft); err != nil {
		return dto.ModerationResponse{}, s.block(ctx, d, err)
	}

	now := s.now().UTC()
	lesson, err := s.existingCopy(ctx, draft.ID)
	if err != nil {
		return dto.ModerationResponse{}, s.fail(d, err)
	}

	lesson.CopyContent(draft)
	lesson.IsActive = true
	lesson.PublishState = models.PublishStatePublished
	lesson.ModerationStatus = models.ModerationApproved
	lesson.ModerationReviewedBy = &actorUID
	lesson.ModerationReviewedAt = &now
	lesson.SourceLocation = location
	lesson.UnpublishedAt = nil
	lesson.UnpublishedBy = nil
	if lesson.Visibility == "" {
		lesson.Visibility = models.VisibilityPublic
	}
	if lesson.PublishedAt == nil {
		lesson.PublishedAt = &now
	}

	if err := s.published.Save(ctx, &lesson); err != nil {
		return dto.ModerationResponse{}, s.fail(d, err)
	}

	if err := s.drafts.UpdateFields(ctx, location, draft.ID, map[string]interface{}{
		"status":        models.LessonStatusPublished,
		"publish_state": models.PublishStatePublished,
		"published_at":  now,
		"rejected_at":   nil,
		"updated_at":    now,
	}); err != nil {
		return dto.ModerationResponse{}, s.fail(d, err)
	}

	s.succeed(ctx, d, "approved")
	return dto.ModerationResponse{
		ID:           draft.ID,
		Action:       "approve",
		Status:       models.LessonStatusPublished,
		PublishState: models.PublishStatePublished,
		IsActive:     true,
	}, nil
}

func (s *lessonLifecycleService) Reject(ctx context.Context, actorUID, draftID string) (dto.ModerationResponse, error) {
	ctx, d := s.begin(ctx, AuditActionReject, actorUID, draftID)
	defer d.span.End()

	if err := s.requireAdmin(ctx, d); err != nil {
		return dto.ModerationResponse{}, err
	}

	draft, location, err := s.locateDraft(ctx, draftID)
	if err != nil {
		return dto.ModerationResponse{}, s.block(ctx, d, err)
	}
	d.meta["location"] = location

	now := s.now().UTC()
	lesson, err := s.published.Get(ctx, draft.ID)
	switch {
	case err == nil:
		lesson.IsActive = false
		lesson.PublishState = models.PublishStateRejected
		lesson.ModerationStatus = models.ModerationRejected
		lesson.ModerationReviewedBy = &actorUID
		lesson.ModerationReviewedAt = &now
		if err := s.published.Save(ctx, &lesson); err != nil {
			return dto.ModerationResponse{}, s.fail(d, err)
		}
		d.meta["published_copy"] = true
	case errors.Is(err, gorm.ErrRecordNotFound):
		d.meta["published_copy"] = false
	default:
		return dto.ModerationResponse{}, s.fail(d, err)
	}

	if err := s.drafts.UpdateFields(ctx, location, draft.ID, map[string]interface{}{
		"status":        models.LessonStatusDraft,
		"publish_state": models.PublishStateRejected,
		"rejected_at":   now,
		"updated_at":    now,
	}); err != nil {
		return dto.ModerationResponse{}, s.fail(d, err)
	}

	s.succeed(ctx, d, "rejected")
	return dto.ModerationResponse{
		ID:           draft.ID,
		Action:       "reject",
		Status:       models.LessonStatusDraft,
		PublishState: models.PublishStateRejected,
		IsActive:     false,
	}, nil
}

func (s *lessonLifecycleService) Publish(ctx context.Context, actorUID string, req dto.PublishLessonRequest) (dto.PublishResponse, error) {
	lessonID := req.TargetID()
	ctx, d := s.begin(ctx, AuditActionPublish, actorUID, lessonID)
	defer d.span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.PublishResponse{}, s.block(ctx, d, err)
	}
	if lessonID == "" {
		return dto.PublishResponse{}, s.block(ctx, d, validationError("id or lessonId is required"))
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return dto.PublishResponse{}, s.fail(d, err)
	}
	d.actor = actor
	if !authz.CanPublish(actor) {
		return dto.PublishResponse{}, s.block(ctx, d, ErrUnauthorized)
	}

	draft, location, err := s.locateDraft(ctx, lessonID)
	if err != nil {
		return dto.PublishResponse{}, s.block(ctx, d, err)
	}
	d.meta["location"] = location

	isAdmin := authz.IsAdmin(actor)
	if draft.OwnerID != actorUID && !isAdmin {
		return dto.PublishResponse{}, s.block(ctx, d, ErrNotOwner)
	}
	if err := requireContent(draft); err != nil {
		return dto.PublishResponse{}, s.block(ctx, d, err)
	}

	viaAdmin := isAdmin && draft.OwnerID != actorUID
	d.meta["via_admin"] = viaAdmin
	d.span.SetAttributes(attribute.Bool("lesson.via_admin", viaAdmin))

	now := s.now().UTC()
	lesson, err := s.existingCopy(ctx, draft.ID)
	if err != nil {
		return dto.PublishResponse{}, s.fail(d, err)
	}

	lesson.CopyContent(draft)
	lesson.IsActive = true
	lesson.PublishState = models.PublishStatePublished
	lesson.ModerationStatus = models.ModerationPending
	lesson.ModerationReviewedBy = nil
	lesson.ModerationReviewedAt = nil
	lesson.SourceLocation = location
	lesson.PublishedAt = &now
	lesson.UnpublishedAt = nil
	lesson.UnpublishedBy = nil
	lesson.SignedBy = s.signature(actor, actorUID, now, viaAdmin)
	switch {
	case req.Visibility != "":
		lesson.Visibility = req.Visibility
	case lesson.Visibility == "":
		lesson.Visibility = models.VisibilityPublic
	}

	if err := s.published.Save(ctx, &lesson); err != nil {
		return dto.PublishResponse{}, s.fail(d, err)
	}

	if err := s.drafts.UpdateFields(ctx, location, draft.ID, map[string]interface{}{
		"status":        models.LessonStatusPublished,
		"publish_state": models.PublishStatePublished,
		"published_at":  now,
		"updated_at":    now,
	}); err != nil {
		return dto.PublishResponse{}, s.fail(d, err)
	}

	s.succeed(ctx, d, "published")
	return dto.PublishResponse{PublishedLessonID: lesson.ID}, nil
}

func (s *lessonLifecycleService) Unpublish(ctx context.Context, actorUID string, req dto.UnpublishLessonRequest) (dto.UnpublishResponse, error) {
	publishedID := req.TargetID()
	ctx, d := s.begin(ctx, AuditActionUnpublish, actorUID, publishedID)
	defer d.span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.UnpublishResponse{}, s.block(ctx, d, err)
	}
	if publishedID == "" {
		return dto.UnpublishResponse{}, s.block(ctx, d, validationError("id or lessonId is required"))
	}

	draftID := strings.TrimSpace(req.DraftID)
	if draftID == "" {
		draftID = publishedID
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return dto.UnpublishResponse{}, s.fail(d, err)
	}
	d.actor = actor

	lesson, err := s.published.Get(ctx, publishedID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UnpublishResponse{}, s.block(ctx, d, ErrPublishedLessonNotFound)
		}
		return dto.UnpublishResponse{}, s.fail(d, err)
	}

	draft, location, err := s.locateDraft(ctx, draftID)
	draftFound := err == nil
	if err != nil && !errors.Is(err, ErrDraftNotFound) {
		return dto.UnpublishResponse{}, s.fail(d, err)
	}
	d.meta["draft_found"] = draftFound

	owner := lesson.OwnerID
	if draftFound {
		owner = draft.OwnerID
	}
	if owner != actorUID && !authz.IsAdmin(actor) {
		return dto.UnpublishResponse{}, s.block(ctx, d, ErrNotOwner)
	}

	now := s.now().UTC()
	lesson.IsActive = false
	lesson.PublishState = models.PublishStateNone
	lesson.UnpublishedAt = &now
	lesson.UnpublishedBy = &actorUID
	if err := s.published.Save(ctx, &lesson); err != nil {
		return dto.UnpublishResponse{}, s.fail(d, err)
	}

	response := dto.UnpublishResponse{PublishedID: lesson.ID}
	if draftFound {
		if err := s.drafts.UpdateFields(ctx, location, draft.ID, map[string]interface{}{
			"status":        models.LessonStatusDraft,
			"publish_state": models.PublishStateNone,
			"updated_at":    now,
		}); err != nil {
			return dto.UnpublishResponse{}, s.fail(d, err)
		}
		response.DraftID = draft.ID
	}

	s.succeed(ctx, d, "unpublished")
	return response, nil
}

func (s *lessonLifecycleService) GetPublished(ctx context.Context, viewerUID, id string) (dto.PublishedLessonResponse, error) {
	lesson, err := s.published.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.PublishedLessonResponse{}, ErrPublishedLessonNotFound
		}
		return dto.PublishedLessonResponse{}, err
	}

	if lesson.IsActive && lesson.Visibility != models.VisibilityPrivate {
		return dto.NewPublishedLessonResponse(lesson), nil
	}

	if viewerUID != "" && viewerUID == lesson.OwnerID {
		return dto.NewPublishedLessonResponse(lesson), nil
	}
	if viewerUID != "" {
		viewer, err := loadActor(ctx, s.profiles, viewerUID)
		if err != nil {
			return dto.PublishedLessonResponse{}, err
		}
		if authz.IsAdmin(viewer) {
			return dto.NewPublishedLessonResponse(lesson), nil
		}
	}

	return dto.PublishedLessonResponse{}, ErrPublishedLessonNotFound
}

func (s *lessonLifecycleService) ListPublished(ctx context.Context, filter dto.PublishedLessonFilter) ([]dto.PublishedLessonSummary, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	field := fmt.Sprintf("%s|%s", strings.ToLower(filter.Language), filter.Level)
	if s.cache != nil {
		cached, err := s.cache.HGet(ctx, publishedListCacheKey, field).Result()
		if err == nil {
			var summaries []dto.PublishedLessonSummary
			if unmarshalErr := json.Unmarshal([]byte(cached), &summaries); unmarshalErr == nil {
				return summaries, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read published lesson cache")
		}
	}

	lessons, err := s.published.ListActive(ctx, repository.PublishedLessonFilter{
		Language:   filter.Language,
		Level:      filter.Level,
		Visibility: models.VisibilityPublic,
		Limit:      publishedListLimit,
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]dto.PublishedLessonSummary, 0, len(lessons))
	for _, lesson := range lessons {
		summaries = append(summaries, dto.NewPublishedLessonSummary(lesson))
	}

	if s.cache != nil {
		if payload, err := json.Marshal(summaries); err == nil {
			pipe := s.cache.TxPipeline()
			pipe.HSet(ctx, publishedListCacheKey, field, payload)
			pipe.Expire(ctx, publishedListCacheKey, s.cacheTTL)
			if _, err := pipe.Exec(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store published lesson cache")
			}
		}
	}

	return summaries, nil
}

func (s *lessonLifecycleService) invalidateList(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, publishedListCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate published lesson cache")
	}
}

func (s *lessonLifecycleService) requireAdmin(ctx context.Context, d *decision) error {
	actor, err := loadActor(ctx, s.profiles, d.actorID)
	if err != nil {
		return s.fail(d, err)
	}
	d.actor = actor
	if !authz.IsAdmin(actor) {
		return s.block(ctx, d, ErrUnauthorized)
	}
	return nil
}

func (s *lessonLifecycleService) locateDraft(ctx context.Context, id string) (models.LessonDraft, string, error) {
	draft, location, err := s.drafts.Locate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LessonDraft{}, "", ErrDraftNotFound
		}
		return models.LessonDraft{}, "", err
	}
	return draft, location, nil
}

// existingCopy returns the prior published copy to merge over, or an empty one.
func (s *lessonLifecycleService) existingCopy(ctx context.Context, id string) (models.PublishedLesson, error) {
	lesson, err := s.published.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PublishedLesson{ID: id}, nil
		}
		return models.PublishedLesson{}, err
	}
	return lesson, nil
}

func (s *lessonLifecycleService) signature(actor *models.UserProfile, actorUID string, at time.Time, viaAdmin bool) models.SignedBy {
	signed := models.SignedBy{
		UID:                actorUID,
		Org:                s.signing.Org,
		AttestationVersion: s.signing.AttestationVersion,
		SignedAt:           &at,
		ViaAdmin:           viaAdmin,
	}
	if actor != nil {
		signed.DisplayName = actor.DisplayName
		signed.Email = actor.Email
		if actor.Org != "" {
			signed.Org = actor.Org
		}
	}
	return signed
}

func requireContent(draft models.LessonDraft) error {
	if strings.TrimSpace(draft.Title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(draft.SourceText) == "" {
		return validationError("sourceText is required")
	}
	return nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "insufficient role"
	case errors.Is(err, ErrNotOwner):
		return "not owner"
	case errors.Is(err, ErrDraftNotFound):
		return "draft not found"
	case errors.Is(err, ErrPublishedLessonNotFound):
		return "published lesson not found"
	default:
		return err.Error()
	}
}
