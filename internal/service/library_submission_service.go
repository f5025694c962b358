package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
)

const defaultAdminQueryPageSize = 500

// LibrarySubmissionService records answers from the student library and serves the admin query.
type LibrarySubmissionService interface {
	Submit(ctx context.Context, lessonID string, req dto.LibrarySubmitRequest, identity *Identity) (dto.LibrarySubmissionResponse, error)
	UpdateAnswer(ctx context.Context, submissionID string, req dto.LibraryUpdateRequest, identity *Identity) (dto.LibrarySubmissionResponse, error)
	AdminQuery(ctx context.Context, token string, query dto.AdminSubmissionQuery) ([]dto.LibrarySubmissionResponse, error)
}

type librarySubmissionService struct {
	submissions repository.LibrarySubmissionRepository
	published   repository.PublishedLessonRepository
	audit       AuditRecorder
	validator   *validator.Validate
	logger      zerolog.Logger
	adminToken  string
	maxPageSize int
}

// NewLibrarySubmissionService constructs the library submission service.
func NewLibrarySubmissionService(submissions repository.LibrarySubmissionRepository, published repository.PublishedLessonRepository, audit AuditRecorder, adminToken string, maxPageSize int, validate *validator.Validate, logger zerolog.Logger) LibrarySubmissionService {
	if maxPageSize <= 0 {
		maxPageSize = defaultAdminQueryPageSize
	}
	return &librarySubmissionService{
		submissions: submissions,
		published:   published,
		audit:       audit,
		validator:   validate,
		logger:      logger.With().Str("component", "library_submission_service").Logger(),
		adminToken:  adminToken,
		maxPageSize: maxPageSize,
	}
}

func (s *librarySubmissionService) Submit(ctx context.Context, lessonID string, req dto.LibrarySubmitRequest, identity *Identity) (dto.LibrarySubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LibrarySubmissionResponse{}, err
	}

	lesson, err := s.published.Get(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LibrarySubmissionResponse{}, ErrPublishedLessonNotFound
		}
		return dto.LibrarySubmissionResponse{}, err
	}
	if !lesson.IsActive {
		return dto.LibrarySubmissionResponse{}, ErrPublishedLessonNotFound
	}

	taskType := strings.TrimSpace(req.TaskType)
	if len(lesson.Tasks) > 0 {
		if req.TaskIndex >= len(lesson.Tasks) {
			return dto.LibrarySubmissionResponse{}, validationError("task index out of range")
		}
		if taskType == "" {
			taskType = lesson.Tasks[req.TaskIndex].Type
		}
	}

	submission := models.LibrarySubmission{
		ID:        uuid.NewString(),
		LessonID:  lesson.ID,
		TaskIndex: req.TaskIndex,
		TaskType:  taskType,
		Answer:    datatypes.JSONMap(req.Answer),
		IsCorrect: req.IsCorrect,
		Author:    authorshipFor(identity),
		Status:    models.SubmissionStatusNew,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.LibrarySubmissionResponse{}, err
	}

	return dto.NewLibrarySubmissionResponse(submission), nil
}

func (s *librarySubmissionService) UpdateAnswer(ctx context.Context, submissionID string, req dto.LibraryUpdateRequest, identity *Identity) (dto.LibrarySubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.LibrarySubmissionResponse{}, err
	}
	if !identity.SignedIn() {
		return dto.LibrarySubmissionResponse{}, ErrAuthenticationRequired
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LibrarySubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.LibrarySubmissionResponse{}, err
	}
	if !submission.Author.IsAuthor(identity.UID) {
		return dto.LibrarySubmissionResponse{}, ErrNotOwner
	}
	if submission.IsLocked() {
		return dto.LibrarySubmissionResponse{}, ErrSubmissionLocked
	}

	submission.Answer = datatypes.JSONMap(req.Answer)
	submission.IsCorrect = req.IsCorrect
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.LibrarySubmissionResponse{}, err
	}

	return dto.NewLibrarySubmissionResponse(submission), nil
}

func (s *librarySubmissionService) AdminQuery(ctx context.Context, token string, query dto.AdminSubmissionQuery) ([]dto.LibrarySubmissionResponse, error) {
	if !s.validToken(token) {
		s.recordQuery(ctx, query, models.AuditOutcomeBlocked, "invalid admin token")
		return nil, ErrInvalidAdminToken
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 || limit > s.maxPageSize {
		limit = s.maxPageSize
	}

	items, err := s.submissions.Query(ctx, repository.LibrarySubmissionQuery{
		LessonID:  strings.TrimSpace(query.LessonID),
		TaskType:  strings.TrimSpace(query.TaskType),
		IsCorrect: query.IsCorrect,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	s.recordQuery(ctx, query, models.AuditOutcomeSucceeded, "")
	return dto.NewLibrarySubmissionResponseSlice(items), nil
}

func (s *librarySubmissionService) validToken(token string) bool {
	expected := strings.TrimSpace(s.adminToken)
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(token))) == 1
}

func (s *librarySubmissionService) recordQuery(ctx context.Context, query dto.AdminSubmissionQuery, outcome, reason string) {
	if s.audit == nil {
		return
	}
	metadata := map[string]interface{}{
		"lesson_id": query.LessonID,
		"task_type": query.TaskType,
		"limit":     query.Limit,
	}
	if query.IsCorrect != nil {
		metadata["is_correct"] = *query.IsCorrect
	}
	if err := s.audit.Record(ctx, AuditEntry{
		ActorID:    "admin-token",
		ActorRole:  "admin",
		Action:     AuditActionAdminQuery,
		EntityType: auditEntityLessonSubmission,
		Outcome:    outcome,
		Reason:     reason,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record admin query audit event")
	}
}
