package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

const (
	spaceCodeLetters      = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	spaceCodeDigits       = "23456789"
	defaultSpaceCodeTries = 10
	spaceCodeLetterCount  = 3
	spaceCodeDigitCount   = 3
)

// CodeGenerator produces candidate space codes.
type CodeGenerator func() (string, error)

// SpaceServiceConfig wires the space service.
type SpaceServiceConfig struct {
	Spaces       repository.SpaceRepository
	Submissions  repository.SubmissionRepository
	Published    repository.PublishedLessonRepository
	Profiles     repository.ProfileRepository
	Feed         SpaceEventPublisher
	Validator    *validator.Validate
	Logger       zerolog.Logger
	CodeAttempts int
	Codes        CodeGenerator
}

// SpaceService manages classroom spaces and the submissions collected in them.
type SpaceService interface {
	CreateSpace(ctx context.Context, actorUID string, req dto.SpaceCreateRequest) (dto.SpaceResponse, error)
	UpdateSpace(ctx context.Context, actorUID, spaceID string, req dto.SpaceUpdateRequest) (dto.SpaceResponse, error)
	ListMine(ctx context.Context, actorUID string) ([]dto.SpaceResponse, error)
	JoinByCode(ctx context.Context, code string) (dto.JoinSpaceResponse, error)
	AuthorizeFeed(ctx context.Context, actorUID, spaceID string) error

	Submit(ctx context.Context, spaceID, lessonID string, req dto.SubmitAnswersRequest, identity *Identity) (dto.SpaceSubmissionResponse, error)
	UpdateAnswers(ctx context.Context, spaceID, submissionID string, req dto.SubmitAnswersRequest, identity *Identity) (dto.SpaceSubmissionResponse, error)
	Review(ctx context.Context, actorUID, spaceID, submissionID string, req dto.ReviewSubmissionRequest) (dto.SpaceSubmissionResponse, error)
	ListSubmissions(ctx context.Context, actorUID, spaceID, lessonID string) ([]dto.SpaceSubmissionResponse, error)
}

type spaceService struct {
	spaces       repository.SpaceRepository
	submissions  repository.SubmissionRepository
	published    repository.PublishedLessonRepository
	profiles     repository.ProfileRepository
	feed         SpaceEventPublisher
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	codeAttempts int
	codes        CodeGenerator
	now          func() time.Time
}

// NewSpaceService constructs the space service.
func NewSpaceService(cfg SpaceServiceConfig) SpaceService {
	attempts := cfg.CodeAttempts
	if attempts <= 0 {
		attempts = defaultSpaceCodeTries
	}
	codes := cfg.Codes
	if codes == nil {
		codes = RandomSpaceCode
	}

	return &spaceService{
		spaces:       cfg.Spaces,
		submissions:  cfg.Submissions,
		published:    cfg.Published,
		profiles:     cfg.Profiles,
		feed:         cfg.Feed,
		validator:    cfg.Validator,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       cfg.Logger.With().Str("component", "space_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/skole-api/internal/service/space"),
		codeAttempts: attempts,
		codes:        codes,
		now:          time.Now,
	}
}

// RandomSpaceCode returns three unambiguous letters followed by three unambiguous digits.
func RandomSpaceCode() (string, error) {
	var builder strings.Builder
	for i := 0; i < spaceCodeLetterCount; i++ {
		ch, err := pick(spaceCodeLetters)
		if err != nil {
			return "", err
		}
		builder.WriteByte(ch)
	}
	for i := 0; i < spaceCodeDigitCount; i++ {
		ch, err := pick(spaceCodeDigits)
		if err != nil {
			return "", err
		}
		builder.WriteByte(ch)
	}
	return builder.String(), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, err
	}
	return alphabet[n.Int64()], nil
}

// NormalizeSpaceCode trims, uppercases and removes all whitespace.
func NormalizeSpaceCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func (s *spaceService) CreateSpace(ctx context.Context, actorUID string, req dto.SpaceCreateRequest) (dto.SpaceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "spaces.create")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SpaceResponse{}, err
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return dto.SpaceResponse{}, err
	}
	if !authz.IsApprovedTeacher(actor) {
		return dto.SpaceResponse{}, ErrNotApprovedTeacher
	}

	code, err := s.uniqueCode(ctx)
	if err != nil {
		span.RecordError(err)
		return dto.SpaceResponse{}, err
	}

	isOpen := true
	if req.IsOpen != nil {
		isOpen = *req.IsOpen
	}

	space := models.Space{
		ID:        uuid.NewString(),
		OwnerID:   actorUID,
		Title:     plainText(s.sanitizer, req.Title),
		Code:      code,
		IsOpen:    isOpen,
		LessonIDs: datatypes.JSONSlice[string](dedupe(req.LessonIDs)),
	}
	if space.Title == "" {
		return dto.SpaceResponse{}, validationError("title is required")
	}

	if err := s.spaces.Create(ctx, &space); err != nil {
		return dto.SpaceResponse{}, err
	}

	s.logger.Info().Str("space_id", space.ID).Str("code", space.Code).Msg("space created")
	return dto.NewSpaceResponse(space), nil
}

// uniqueCode retries until a candidate is unused, bounded by the configured attempts.
func (s *spaceService) uniqueCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= s.codeAttempts; attempt++ {
		candidate, err := s.codes()
		if err != nil {
			return "", err
		}
		candidate = NormalizeSpaceCode(candidate)

		inUse, err := s.spaces.CodeInUse(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			observability.SpaceCodeAttempts().Observe(float64(attempt))
			return candidate, nil
		}
	}

	s.logger.Error().Int("attempts", s.codeAttempts).Msg("space code generation exhausted")
	return "", ErrExhaustedRetries
}

func (s *spaceService) UpdateSpace(ctx context.Context, actorUID, spaceID string, req dto.SpaceUpdateRequest) (dto.SpaceResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SpaceResponse{}, err
	}

	space, err := s.ownedSpace(ctx, actorUID, spaceID)
	if err != nil {
		return dto.SpaceResponse{}, err
	}

	if req.Title != nil {
		title := plainText(s.sanitizer, *req.Title)
		if title == "" {
			return dto.SpaceResponse{}, validationError("title is required")
		}
		space.Title = title
	}
	if req.IsOpen != nil {
		space.IsOpen = *req.IsOpen
	}
	if req.LessonIDs != nil {
		space.LessonIDs = datatypes.JSONSlice[string](dedupe(*req.LessonIDs))
	}

	if err := s.spaces.Save(ctx, &space); err != nil {
		return dto.SpaceResponse{}, err
	}
	return dto.NewSpaceResponse(space), nil
}

func (s *spaceService) ListMine(ctx context.Context, actorUID string) ([]dto.SpaceResponse, error) {
	if strings.TrimSpace(actorUID) == "" {
		return nil, ErrAuthenticationRequired
	}

	spaces, err := s.spaces.ListByOwner(ctx, actorUID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SpaceResponse, 0, len(spaces))
	for _, space := range spaces {
		responses = append(responses, dto.NewSpaceResponse(space))
	}
	return responses, nil
}

func (s *spaceService) JoinByCode(ctx context.Context, code string) (dto.JoinSpaceResponse, error) {
	normalized := NormalizeSpaceCode(code)
	if normalized == "" {
		return dto.JoinSpaceResponse{}, validationError("code is required")
	}

	space, err := s.findByCode(ctx, normalized)
	if err != nil {
		return dto.JoinSpaceResponse{}, err
	}

	lessons := make([]dto.PublishedLessonSummary, 0, len(space.LessonIDs))
	for _, lessonID := range space.LessonIDs {
		lesson, err := s.published.Get(ctx, lessonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return dto.JoinSpaceResponse{}, err
		}
		if !lesson.IsActive || lesson.Visibility == models.VisibilityPrivate {
			continue
		}
		lessons = append(lessons, dto.NewPublishedLessonSummary(lesson))
	}

	return dto.JoinSpaceResponse{
		Space: dto.SpaceSummary{
			ID:     space.ID,
			Title:  space.Title,
			Code:   space.ShareCode(),
			IsOpen: space.IsOpen,
		},
		Lessons: lessons,
	}, nil
}

// findByCode tries every column a code has historically been stored under.
func (s *spaceService) findByCode(ctx context.Context, code string) (models.Space, error) {
	for _, column := range models.SpaceCodeColumns {
		space, err := s.spaces.FindByCodeColumn(ctx, column, code)
		if err == nil {
			return space, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Space{}, err
		}
	}
	return models.Space{}, ErrSpaceNotFound
}

func (s *spaceService) AuthorizeFeed(ctx context.Context, actorUID, spaceID string) error {
	_, err := s.ownedSpace(ctx, actorUID, spaceID)
	return err
}

func (s *spaceService) getSpace(ctx context.Context, spaceID string) (models.Space, error) {
	space, err := s.spaces.GetByID(ctx, spaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Space{}, ErrSpaceNotFound
		}
		return models.Space{}, err
	}
	return space, nil
}

// ownedSpace loads a space the actor owns. Admins may act on any space.
func (s *spaceService) ownedSpace(ctx context.Context, actorUID, spaceID string) (models.Space, error) {
	if strings.TrimSpace(actorUID) == "" {
		return models.Space{}, ErrAuthenticationRequired
	}

	space, err := s.getSpace(ctx, spaceID)
	if err != nil {
		return models.Space{}, err
	}
	if space.OwnerID == actorUID {
		return space, nil
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return models.Space{}, err
	}
	if !authz.IsAdmin(actor) {
		return models.Space{}, ErrNotOwner
	}
	return space, nil
}

func dedupe(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
