package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

const defaultMaxImportBytes int64 = 512 * 1024

// LessonDraftService manages the editable authoring copy of lessons.
type LessonDraftService interface {
	Create(ctx context.Context, actorUID string, req dto.LessonDraftCreateRequest) (dto.LessonDraftResponse, error)
	Update(ctx context.Context, actorUID, id string, req dto.LessonDraftUpdateRequest) (dto.LessonDraftResponse, error)
	Get(ctx context.Context, actorUID, id string) (dto.LessonDraftResponse, error)
	ListMine(ctx context.Context, actorUID string) ([]dto.LessonDraftResponse, error)
	ImportSource(ctx context.Context, actorUID, id string, file *multipart.FileHeader) (dto.LessonDraftResponse, error)
}

type lessonDraftService struct {
	drafts    repository.LessonDraftRepository
	profiles  repository.ProfileRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	maxImport int64
	now       func() time.Time
}

// NewLessonDraftService constructs the draft service.
func NewLessonDraftService(drafts repository.LessonDraftRepository, profiles repository.ProfileRepository, validate *validator.Validate, logger zerolog.Logger) LessonDraftService {
	return &lessonDraftService{
		drafts:    drafts,
		profiles:  profiles,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "lesson_draft_service").Logger(),
		maxImport: defaultMaxImportBytes,
		now:       time.Now,
	}
}

func (s *lessonDraftService) Create(ctx context.Context, actorUID string, req dto.LessonDraftCreateRequest) (dto.LessonDraftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return dto.LessonDraftResponse{}, err
	}
	if !authz.CanCreateContent(actor) {
		return dto.LessonDraftResponse{}, ErrUnauthorized
	}

	draft := models.LessonDraft{
		ID:           uuid.NewString(),
		OwnerID:      actorUID,
		Title:        s.cleanTitle(req.Title),
		SourceText:   strings.TrimSpace(req.SourceText),
		Level:        req.Level,
		Language:     strings.TrimSpace(req.Language),
		Topics:       datatypes.JSONSlice[string](cleanTopics(req.Topics)),
		TextType:     strings.TrimSpace(req.TextType),
		Tasks:        datatypes.JSONSlice[models.LessonTask](toTasks(req.Tasks)),
		Status:       models.LessonStatusDraft,
		PublishState: models.PublishStateNone,
	}

	if err := s.drafts.Create(ctx, &draft); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	s.logger.Info().Str("draft_id", draft.ID).Str("owner_id", actorUID).Msg("lesson draft created")
	return dto.NewLessonDraftResponse(draft, models.DraftLocationPrimary), nil
}

func (s *lessonDraftService) Update(ctx context.Context, actorUID, id string, req dto.LessonDraftUpdateRequest) (dto.LessonDraftResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	draft, location, err := s.editable(ctx, actorUID, id)
	if err != nil {
		return dto.LessonDraftResponse{}, err
	}

	if req.Title != nil {
		draft.Title = s.cleanTitle(*req.Title)
	}
	if req.SourceText != nil {
		draft.SourceText = strings.TrimSpace(*req.SourceText)
	}
	if req.Level != nil {
		draft.Level = *req.Level
	}
	if req.Language != nil {
		draft.Language = strings.TrimSpace(*req.Language)
	}
	if req.Topics != nil {
		draft.Topics = datatypes.JSONSlice[string](cleanTopics(*req.Topics))
	}
	if req.TextType != nil {
		draft.TextType = strings.TrimSpace(*req.TextType)
	}
	if req.Tasks != nil {
		if err := s.validator.Var(*req.Tasks, "max=100,dive"); err != nil {
			return dto.LessonDraftResponse{}, err
		}
		draft.Tasks = datatypes.JSONSlice[models.LessonTask](toTasks(*req.Tasks))
	}

	if err := s.drafts.Save(ctx, location, &draft); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	return dto.NewLessonDraftResponse(draft, location), nil
}

func (s *lessonDraftService) Get(ctx context.Context, actorUID, id string) (dto.LessonDraftResponse, error) {
	draft, location, err := s.editable(ctx, actorUID, id)
	if err != nil {
		return dto.LessonDraftResponse{}, err
	}
	return dto.NewLessonDraftResponse(draft, location), nil
}

func (s *lessonDraftService) ListMine(ctx context.Context, actorUID string) ([]dto.LessonDraftResponse, error) {
	if strings.TrimSpace(actorUID) == "" {
		return nil, ErrAuthenticationRequired
	}

	drafts, err := s.drafts.ListByOwner(ctx, actorUID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.LessonDraftResponse, 0, len(drafts))
	for _, draft := range drafts {
		responses = append(responses, dto.NewLessonDraftResponse(draft, ""))
	}
	return responses, nil
}

func (s *lessonDraftService) ImportSource(ctx context.Context, actorUID, id string, file *multipart.FileHeader) (dto.LessonDraftResponse, error) {
	if file == nil {
		return dto.LessonDraftResponse{}, validationError("file is required")
	}
	if file.Size > s.maxImport {
		observability.DraftImportsRejected().WithLabelValues("size").Inc()
		return dto.LessonDraftResponse{}, validationError("file exceeds maximum allowed size")
	}

	draft, location, err := s.editable(ctx, actorUID, id)
	if err != nil {
		return dto.LessonDraftResponse{}, err
	}

	handle, err := file.Open()
	if err != nil {
		return dto.LessonDraftResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxImport+1)); err != nil {
		return dto.LessonDraftResponse{}, err
	}
	if int64(buf.Len()) > s.maxImport {
		observability.DraftImportsRejected().WithLabelValues("size").Inc()
		return dto.LessonDraftResponse{}, validationError("file exceeds maximum allowed size")
	}

	detected := mimetype.Detect(buf.Bytes())
	if !detected.Is("text/plain") {
		observability.DraftImportsRejected().WithLabelValues("type").Inc()
		return dto.LessonDraftResponse{}, validationError("source must be a plain text file")
	}

	text := strings.TrimSpace(buf.String())
	if text == "" {
		observability.DraftImportsRejected().WithLabelValues("empty").Inc()
		return dto.LessonDraftResponse{}, validationError("source file is empty")
	}

	now := s.now().UTC()
	if err := s.drafts.UpdateFields(ctx, location, draft.ID, map[string]interface{}{
		"source_text": text,
		"updated_at":  now,
	}); err != nil {
		return dto.LessonDraftResponse{}, err
	}

	draft.SourceText = text
	draft.UpdatedAt = now
	s.logger.Info().Str("draft_id", draft.ID).Str("mime", detected.String()).Int("bytes", buf.Len()).Msg("draft source imported")
	return dto.NewLessonDraftResponse(draft, location), nil
}

// editable loads a draft the actor may read or mutate: the owner or an admin.
func (s *lessonDraftService) editable(ctx context.Context, actorUID, id string) (models.LessonDraft, string, error) {
	if strings.TrimSpace(actorUID) == "" {
		return models.LessonDraft{}, "", ErrAuthenticationRequired
	}

	draft, location, err := s.drafts.Locate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LessonDraft{}, "", ErrDraftNotFound
		}
		return models.LessonDraft{}, "", err
	}

	if draft.OwnerID == actorUID {
		return draft, location, nil
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return models.LessonDraft{}, "", err
	}
	if !authz.IsAdmin(actor) {
		return models.LessonDraft{}, "", ErrNotOwner
	}
	return draft, location, nil
}

func (s *lessonDraftService) cleanTitle(title string) string {
	return plainText(s.sanitizer, title)
}

func cleanTopics(topics []string) []string {
	cleaned := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		trimmed := strings.TrimSpace(topic)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

func toTasks(payloads []dto.LessonTaskPayload) []models.LessonTask {
	tasks := make([]models.LessonTask, 0, len(payloads))
	for _, payload := range payloads {
		tasks = append(tasks, models.LessonTask{
			Type:    strings.TrimSpace(payload.Type),
			Prompt:  strings.TrimSpace(payload.Prompt),
			Options: payload.Options,
			Answer:  strings.TrimSpace(payload.Answer),
		})
	}
	return tasks
}
