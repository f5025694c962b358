package dto

import (
	"time"

	"github.com/noah-isme/skole-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AuditListRequest defines filters for listing audit events.
type AuditListRequest struct {
	Page     int
	PageSize int
	ActorID  string
	Action   string
	EntityID string
	Outcome  string
}

// AuditEventResponse serialises one audit entry.
type AuditEventResponse struct {
	ID            uint                   `json:"id"`
	ActorID       string                 `json:"actor_id"`
	ActorRole     string                 `json:"actor_role"`
	Action        string                 `json:"action"`
	EntityType    string                 `json:"entity_type"`
	EntityID      string                 `json:"entity_id,omitempty"`
	Outcome       string                 `json:"outcome"`
	Reason        string                 `json:"reason,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// AuditListResponse wraps a paginated audit response.
type AuditListResponse struct {
	Items      []AuditEventResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAuditEventResponse converts an audit model.
func NewAuditEventResponse(model models.AuditEvent) AuditEventResponse {
	metadata := map[string]interface{}{}
	for key, value := range model.Metadata {
		metadata[key] = value
	}

	return AuditEventResponse{
		ID:            model.ID,
		ActorID:       model.ActorID,
		ActorRole:     model.ActorRole,
		Action:        model.Action,
		EntityType:    model.EntityType,
		EntityID:      model.EntityID,
		Outcome:       model.Outcome,
		Reason:        model.Reason,
		Metadata:      metadata,
		CorrelationID: model.CorrelationID,
		CreatedAt:     model.CreatedAt,
	}
}

// AdminSubmissionQuery is the shared-token library submission query.
type AdminSubmissionQuery struct {
	LessonID  string `query:"lessonId" validate:"omitempty,max=64"`
	TaskType  string `query:"taskType" validate:"omitempty,max=64"`
	IsCorrect *bool  `query:"isCorrect"`
	Limit     int    `query:"limit" validate:"omitempty,min=0"`
}
