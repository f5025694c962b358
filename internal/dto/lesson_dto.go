package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/skole-api/internal/models"
)

// LessonTaskPayload describes one exercise in a draft.
type LessonTaskPayload struct {
	Type    string   `json:"type" validate:"required,max=64"`
	Prompt  string   `json:"prompt" validate:"max=4000"`
	Options []string `json:"options" validate:"omitempty,max=20"`
	Answer  string   `json:"answer" validate:"max=4000"`
}

// LessonDraftCreateRequest creates a draft.
type LessonDraftCreateRequest struct {
	Title      string              `json:"title" validate:"max=255"`
	SourceText string              `json:"source_text" validate:"max=50000"`
	Level      string              `json:"level" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
	Language   string              `json:"language" validate:"omitempty,max=32"`
	Topics     []string            `json:"topics" validate:"omitempty,max=20"`
	TextType   string              `json:"text_type" validate:"omitempty,max=64"`
	Tasks      []LessonTaskPayload `json:"tasks" validate:"omitempty,max=100,dive"`
}

// LessonDraftUpdateRequest patches a draft. Nil fields are left untouched.
type LessonDraftUpdateRequest struct {
	Title      *string              `json:"title" validate:"omitempty,max=255"`
	SourceText *string              `json:"source_text" validate:"omitempty,max=50000"`
	Level      *string              `json:"level" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
	Language   *string              `json:"language" validate:"omitempty,max=32"`
	Topics     *[]string            `json:"topics"`
	TextType   *string              `json:"text_type" validate:"omitempty,max=64"`
	Tasks      *[]LessonTaskPayload `json:"tasks"`
}

// LessonDraftResponse serialises a draft.
type LessonDraftResponse struct {
	ID           string              `json:"id"`
	OwnerID      string              `json:"owner_id"`
	Title        string              `json:"title"`
	SourceText   string              `json:"source_text"`
	Level        string              `json:"level"`
	Language     string              `json:"language"`
	Topics       []string            `json:"topics"`
	TextType     string              `json:"text_type"`
	Tasks        []models.LessonTask `json:"tasks"`
	Status       string              `json:"status"`
	PublishState string              `json:"publish_state"`
	Location     string              `json:"location"`
	PublishedAt  *time.Time          `json:"published_at,omitempty"`
	RejectedAt   *time.Time          `json:"rejected_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// NewLessonDraftResponse converts a draft model.
func NewLessonDraftResponse(model models.LessonDraft, location string) LessonDraftResponse {
	return LessonDraftResponse{
		ID:           model.ID,
		OwnerID:      model.OwnerID,
		Title:        model.Title,
		SourceText:   model.SourceText,
		Level:        model.Level,
		Language:     model.Language,
		Topics:       nonNilStrings(model.Topics),
		TextType:     model.TextType,
		Tasks:        nonNilTasks(model.Tasks),
		Status:       model.Status,
		PublishState: model.PublishState,
		Location:     location,
		PublishedAt:  model.PublishedAt,
		RejectedAt:   model.RejectedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// ReviewLessonRequest is the approve-or-reject payload.
type ReviewLessonRequest struct {
	ID     string `json:"id" validate:"required,max=64"`
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// PublishLessonRequest accepts either id or lessonId.
type PublishLessonRequest struct {
	ID         string `json:"id" validate:"omitempty,max=64"`
	LessonID   string `json:"lessonId" validate:"omitempty,max=64"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public unlisted private"`
}

// TargetID resolves which identifier the caller used.
func (r PublishLessonRequest) TargetID() string {
	return firstNonBlank(r.ID, r.LessonID)
}

// UnpublishLessonRequest accepts either id or lessonId, plus the optional draft id.
type UnpublishLessonRequest struct {
	ID       string `json:"id" validate:"omitempty,max=64"`
	LessonID string `json:"lessonId" validate:"omitempty,max=64"`
	DraftID  string `json:"draftId" validate:"omitempty,max=64"`
}

// TargetID resolves which identifier the caller used.
func (r UnpublishLessonRequest) TargetID() string {
	return firstNonBlank(r.ID, r.LessonID)
}

// ModerationResponse reports the outcome of approve/reject.
type ModerationResponse struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	Status       string `json:"status"`
	PublishState string `json:"publish_state"`
	IsActive     bool   `json:"is_active"`
}

// PublishResponse is returned by publish.
type PublishResponse struct {
	PublishedLessonID string `json:"publishedLessonId"`
}

// UnpublishResponse is returned by unpublish.
type UnpublishResponse struct {
	PublishedID string `json:"publishedId"`
	DraftID     string `json:"draftId"`
}

// SignedByResponse serialises the attestation snapshot.
type SignedByResponse struct {
	UID                string     `json:"uid"`
	DisplayName        string     `json:"display_name,omitempty"`
	Email              string     `json:"email,omitempty"`
	Org                string     `json:"org,omitempty"`
	AttestationVersion string     `json:"attestation_version"`
	SignedAt           *time.Time `json:"signed_at,omitempty"`
	ViaAdmin           bool       `json:"via_admin"`
}

// ModerationInfo serialises the moderation sub-document.
type ModerationInfo struct {
	Status     string     `json:"status"`
	ReviewedBy *string    `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// PublishedLessonResponse serialises a published snapshot.
type PublishedLessonResponse struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"owner_id"`
	Title         string              `json:"title"`
	SourceText    string              `json:"source_text"`
	Level         string              `json:"level"`
	Language      string              `json:"language"`
	Topics        []string            `json:"topics"`
	TextType      string              `json:"text_type"`
	Tasks         []models.LessonTask `json:"tasks"`
	IsActive      bool                `json:"is_active"`
	Visibility    string              `json:"visibility"`
	PublishState  string              `json:"publish_state"`
	Moderation    ModerationInfo      `json:"moderation"`
	SignedBy      *SignedByResponse   `json:"signed_by,omitempty"`
	PublishedAt   *time.Time          `json:"published_at,omitempty"`
	UnpublishedAt *time.Time          `json:"unpublished_at,omitempty"`
	UnpublishedBy *string             `json:"unpublished_by,omitempty"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewPublishedLessonResponse converts a published model.
func NewPublishedLessonResponse(model models.PublishedLesson) PublishedLessonResponse {
	response := PublishedLessonResponse{
		ID:           model.ID,
		OwnerID:      model.OwnerID,
		Title:        model.Title,
		SourceText:   model.SourceText,
		Level:        model.Level,
		Language:     model.Language,
		Topics:       nonNilStrings(model.Topics),
		TextType:     model.TextType,
		Tasks:        nonNilTasks(model.Tasks),
		IsActive:     model.IsActive,
		Visibility:   model.Visibility,
		PublishState: model.PublishState,
		Moderation: ModerationInfo{
			Status:     model.ModerationStatus,
			ReviewedBy: model.ModerationReviewedBy,
			ReviewedAt: model.ModerationReviewedAt,
		},
		PublishedAt:   model.PublishedAt,
		UnpublishedAt: model.UnpublishedAt,
		UnpublishedBy: model.UnpublishedBy,
		UpdatedAt:     model.UpdatedAt,
	}

	if model.SignedBy.UID != "" {
		response.SignedBy = &SignedByResponse{
			UID:                model.SignedBy.UID,
			DisplayName:        model.SignedBy.DisplayName,
			Email:              model.SignedBy.Email,
			Org:                model.SignedBy.Org,
			AttestationVersion: model.SignedBy.AttestationVersion,
			SignedAt:           model.SignedBy.SignedAt,
			ViaAdmin:           model.SignedBy.ViaAdmin,
		}
	}

	return response
}

// PublishedLessonSummary is the compact listing shape.
type PublishedLessonSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Level      string   `json:"level"`
	Language   string   `json:"language"`
	Topics     []string `json:"topics"`
	TextType   string   `json:"text_type"`
	TaskCount  int      `json:"task_count"`
	Visibility string   `json:"visibility"`
}

// NewPublishedLessonSummary converts a published model into its listing shape.
func NewPublishedLessonSummary(model models.PublishedLesson) PublishedLessonSummary {
	return PublishedLessonSummary{
		ID:         model.ID,
		Title:      model.Title,
		Level:      model.Level,
		Language:   model.Language,
		Topics:     nonNilStrings(model.Topics),
		TextType:   model.TextType,
		TaskCount:  len(model.Tasks),
		Visibility: model.Visibility,
	}
}

// PublishedLessonFilter narrows the student listing.
type PublishedLessonFilter struct {
	Language string `query:"language" validate:"omitempty,max=32"`
	Level    string `query:"level" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
}

// GenerateTextRequest asks the generation gateway for source text.
type GenerateTextRequest struct {
	Topic     string `json:"topic" validate:"required,max=255"`
	Level     string `json:"level" validate:"omitempty,oneof=A1 A2 B1 B2 C1 C2"`
	Language  string `json:"language" validate:"omitempty,max=32"`
	TextType  string `json:"text_type" validate:"omitempty,max=64"`
	WordCount int    `json:"word_count" validate:"omitempty,min=30,max=1500"`
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilTasks(values []models.LessonTask) []models.LessonTask {
	if values == nil {
		return []models.LessonTask{}
	}
	return values
}
