package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/repository"
	"github.com/noah-isme/skole-api/pkg/ai"
)

// ContentGenerationService fills draft source text from the text generator. It never changes
// lifecycle state.
type ContentGenerationService interface {
	GenerateDraftText(ctx context.Context, actorUID, draftID string, req dto.GenerateTextRequest) (dto.LessonDraftResponse, error)
}

type contentGenerationService struct {
	drafts    repository.LessonDraftRepository
	profiles  repository.ProfileRepository
	generator ai.Generator
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewContentGenerationService constructs the generation service. A nil generator behaves as unconfigured.
func NewContentGenerationService(drafts repository.LessonDraftRepository, profiles repository.ProfileRepository, generator ai.Generator, validate *validator.Validate, logger zerolog.Logger) ContentGenerationService {
	if generator == nil {
		generator = ai.Disabled{}
	}
	return &contentGenerationService{
		drafts:    drafts,
		profiles:  profiles,
		generator: generator,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "content_generation_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/skole-api/internal/service/content_generation"),
		now:       time.Now,
	}
}

func (s *contentGenerationService) GenerateDraftText(ctx context.Context, actorUID, draftID string, req dto.GenerateTextRequest) (dto.LessonDraftResponse, error) {
	ctx, span := s.tracer.Start(ctx, "lessons.generate_text")
	span.SetAttributes(attribute.String("lesson.id", draftID))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	draft, location, err := s.drafts.Locate(ctx, draftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LessonDraftResponse{}, ErrDraftNotFound
		}
		return dto.LessonDraftResponse{}, err
	}

	if draft.OwnerID != actorUID {
		actor, err := loadActor(ctx, s.profiles, actorUID)
		if err != nil {
			return dto.LessonDraftResponse{}, err
		}
		if !authz.IsAdmin(actor) {
			return dto.LessonDraftResponse{}, ErrNotOwner
		}
	}

	input := ai.GenerationInput{
		Topic:     strings.TrimSpace(req.Topic),
		Level:     firstNonEmpty(req.Level, draft.Level),
		Language:  firstNonEmpty(req.Language, draft.Language),
		TextType:  firstNonEmpty(req.TextType, draft.TextType),
		WordCount: req.WordCount,
	}

	result, err := s.generator.Generate(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation_failed")
		s.logger.Warn().Err(err).Str("draft_id", draft.ID).Msg("text generation failed")
		return dto.LessonDraftResponse{}, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}

	text := plainText(s.sanitizer, result.Text)
	if text == "" {
		return dto.LessonDraftResponse{}, fmt.Errorf("%w: empty generated text", ErrUpstreamFailure)
	}

	// Reload after the call; edits made while generating are kept except for the fields written here.
	current, _, err := s.drafts.Locate(ctx, draft.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LessonDraftResponse{}, ErrDraftNotFound
		}
		return dto.LessonDraftResponse{}, err
	}

	now := s.now().UTC()
	fields := map[string]interface{}{
		"source_text": text,
		"updated_at":  now,
	}
	current.SourceText = text
	current.UpdatedAt = now
	if strings.TrimSpace(current.Title) == "" {
		if title := plainText(s.sanitizer, result.Title); title != "" {
			fields["title"] = title
			current.Title = title
		}
	}

	if err := s.drafts.UpdateFields(ctx, location, current.ID, fields); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	s.logger.Info().Str("draft_id", current.ID).Int("chars", len(text)).Msg("draft text generated")
	return dto.NewLessonDraftResponse(current, location), nil
}
