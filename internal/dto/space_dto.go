package dto

import (
	"time"

	"github.com/noah-isme/skole-api/internal/models"
)

// SpaceCreateRequest creates a classroom space.
type SpaceCreateRequest struct {
	Title     string   `json:"title" validate:"required,max=255"`
	IsOpen    *bool    `json:"is_open"`
	LessonIDs []string `json:"lesson_ids" validate:"omitempty,max=200,dive,required,max=64"`
}

// SpaceUpdateRequest patches a space. Nil fields are left untouched.
type SpaceUpdateRequest struct {
	Title     *string   `json:"title" validate:"omitempty,min=1,max=255"`
	IsOpen    *bool     `json:"is_open"`
	LessonIDs *[]string `json:"lesson_ids" validate:"omitempty,max=200,dive,required,max=64"`
}

// SpaceResponse serialises a space for its owner.
type SpaceResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	IsOpen    bool      `json:"is_open"`
	LessonIDs []string  `json:"lesson_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSpaceResponse converts a space model.
func NewSpaceResponse(model models.Space) SpaceResponse {
	return SpaceResponse{
		ID:        model.ID,
		OwnerID:   model.OwnerID,
		Title:     model.Title,
		Code:      model.ShareCode(),
		IsOpen:    model.IsOpen,
		LessonIDs: nonNilStrings(model.LessonIDs),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// SpaceSummary is the public view returned when joining by code.
type SpaceSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Code   string `json:"code"`
	IsOpen bool   `json:"is_open"`
}

// JoinSpaceResponse lists the space and its assigned active lessons.
type JoinSpaceResponse struct {
	Space   SpaceSummary             `json:"space"`
	Lessons []PublishedLessonSummary `json:"lessons"`
}

// SubmitAnswersRequest carries free-form answers keyed by task.
type SubmitAnswersRequest struct {
	Answers map[string]interface{} `json:"answers" validate:"required"`
}

// ReviewSubmissionRequest is a teacher verdict on a space submission.
type ReviewSubmissionRequest struct {
	Status   string `json:"status" validate:"required,oneof=reviewed needs_work"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// TeacherFeedbackResponse is present only once a teacher has written feedback.
type TeacherFeedbackResponse struct {
	Text       string     `json:"text"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	TeacherUID string     `json:"teacher_uid,omitempty"`
}

// SpaceSubmissionResponse serialises a submission. Unknown author fields are omitted entirely.
type SpaceSubmissionResponse struct {
	ID              string                   `json:"id"`
	SpaceID         string                   `json:"space_id"`
	LessonID        string                   `json:"lesson_id"`
	Answers         map[string]interface{}   `json:"answers"`
	IsAnon          bool                     `json:"is_anon"`
	UID             *string                  `json:"uid,omitempty"`
	DisplayName     *string                  `json:"display_name,omitempty"`
	Email           *string                  `json:"email,omitempty"`
	Authorship      string                   `json:"authorship"`
	Status          string                   `json:"status"`
	TeacherFeedback *TeacherFeedbackResponse `json:"teacher_feedback,omitempty"`
	ReviewedAt      *time.Time               `json:"reviewed_at,omitempty"`
	Locked          bool                     `json:"locked"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewSpaceSubmissionResponse converts a submission model.
func NewSpaceSubmissionResponse(model models.SpaceSubmission) SpaceSubmissionResponse {
	response := SpaceSubmissionResponse{
		ID:          model.ID,
		SpaceID:     model.SpaceID,
		LessonID:    model.LessonID,
		Answers:     copyMap(model.Answers),
		IsAnon:      model.Author.IsAnon,
		UID:         model.Author.UID,
		DisplayName: model.Author.DisplayName,
		Email:       model.Author.Email,
		Authorship:  model.Author.Kind(),
		Status:      model.Status,
		ReviewedAt:  model.ReviewedAt,
		Locked:      model.IsLocked(),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}

	if model.FeedbackText != nil {
		feedback := &TeacherFeedbackResponse{
			Text:      *model.FeedbackText,
			UpdatedAt: model.FeedbackUpdatedAt,
		}
		if model.FeedbackTeacherUID != nil {
			feedback.TeacherUID = *model.FeedbackTeacherUID
		}
		response.TeacherFeedback = feedback
	}

	return response
}

// SpaceEvent is pushed to feed subscribers when a submission changes.
type SpaceEvent struct {
	Type       string                  `json:"type"`
	SpaceID    string                  `json:"space_id"`
	Submission SpaceSubmissionResponse `json:"submission"`
	SentAt     time.Time               `json:"sent_at"`
}

func copyMap(values map[string]interface{}) map[string]interface{} {
	copied := make(map[string]interface{}, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}
