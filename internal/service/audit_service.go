package service

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

// Audited actions.
const (
	AuditActionApprove          = "lesson.approve"
	AuditActionReject           = "lesson.reject"
	AuditActionPublish          = "lesson.publish"
	AuditActionUnpublish        = "lesson.unpublish"
	AuditActionProfileDecision  = "profile.decision"
	AuditActionAdminQuery       = "submissions.admin_query"
	auditEntityLesson           = "lesson"
	auditEntityProfile          = "profile"
	auditEntityLessonSubmission = "lesson_submission"
)

// AuditEntry captures the details required to persist an audit event.
type AuditEntry struct {
	ActorID    string
	ActorRole  string
	Action     string
	EntityType string
	EntityID   string
	Outcome    string
	Reason     string
	Metadata   map[string]interface{}
}

// AuditRecorder appends audit events.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditService records and lists audit events.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo   repository.AuditRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) error {
	if strings.TrimSpace(entry.Action) == "" {
		return validationError("audit action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return validationError("audit entity type is required")
	}

	outcome := entry.Outcome
	if outcome == "" {
		outcome = models.AuditOutcomeSucceeded
	}

	model := models.AuditEvent{
		ActorID:       defaultActor(entry.ActorID),
		ActorRole:     normalizeRole(entry.ActorRole),
		Action:        strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType:    strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:      strings.TrimSpace(entry.EntityID),
		Outcome:       outcome,
		Reason:        entry.Reason,
		Metadata:      sanitizeMetadata(entry.Metadata),
		CorrelationID: observability.CorrelationFrom(ctx),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist audit event")
		return err
	}

	return nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	filter := repository.AuditFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		ActorID:  strings.TrimSpace(req.ActorID),
		Action:   strings.TrimSpace(req.Action),
		EntityID: strings.TrimSpace(req.EntityID),
		Outcome:  strings.TrimSpace(req.Outcome),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, err
	}

	items := make([]dto.AuditEventResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditEventResponse(entry))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.AuditListResponse{Items: items, Pagination: pagination}, nil
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}

func defaultActor(actorID string) string {
	if strings.TrimSpace(actorID) == "" {
		return "system"
	}
	return actorID
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
