package dto

import (
	"time"

	"github.com/noah-isme/skole-api/internal/models"
)

// LibrarySubmitRequest records an answer to one task of a published lesson.
type LibrarySubmitRequest struct {
	TaskIndex int                    `json:"task_index" validate:"min=0"`
	TaskType  string                 `json:"task_type" validate:"omitempty,max=64"`
	Answer    map[string]interface{} `json:"answer" validate:"required"`
	IsCorrect *bool                  `json:"is_correct"`
}

// LibraryUpdateRequest edits an unreviewed library answer.
type LibraryUpdateRequest struct {
	Answer    map[string]interface{} `json:"answer" validate:"required"`
	IsCorrect *bool                  `json:"is_correct"`
}

// LibrarySubmissionResponse serialises a library submission.
type LibrarySubmissionResponse struct {
	ID          string                 `json:"id"`
	LessonID    string                 `json:"lesson_id"`
	TaskIndex   int                    `json:"task_index"`
	TaskType    string                 `json:"task_type"`
	Answer      map[string]interface{} `json:"answer"`
	IsCorrect   *bool                  `json:"is_correct,omitempty"`
	IsAnon      bool                   `json:"is_anon"`
	UID         *string                `json:"uid,omitempty"`
	DisplayName *string                `json:"display_name,omitempty"`
	Email       *string                `json:"email,omitempty"`
	Authorship  string                 `json:"authorship"`
	Status      string                 `json:"status"`
	ReviewedAt  *time.Time             `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewLibrarySubmissionResponse converts a library submission model.
func NewLibrarySubmissionResponse(model models.LibrarySubmission) LibrarySubmissionResponse {
	return LibrarySubmissionResponse{
		ID:          model.ID,
		LessonID:    model.LessonID,
		TaskIndex:   model.TaskIndex,
		TaskType:    model.TaskType,
		Answer:      copyMap(model.Answer),
		IsCorrect:   model.IsCorrect,
		IsAnon:      model.Author.IsAnon,
		UID:         model.Author.UID,
		DisplayName: model.Author.DisplayName,
		Email:       model.Author.Email,
		Authorship:  model.Author.Kind(),
		Status:      model.Status,
		ReviewedAt:  model.ReviewedAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// NewLibrarySubmissionResponseSlice converts a slice of library submissions.
func NewLibrarySubmissionResponseSlice(items []models.LibrarySubmission) []LibrarySubmissionResponse {
	responses := make([]LibrarySubmissionResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewLibrarySubmissionResponse(item))
	}
	return responses
}
