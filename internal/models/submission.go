package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Submission review states.
const (
	SubmissionStatusNew       = "new"
	SubmissionStatusReviewed  = "reviewed"
	SubmissionStatusNeedsWork = "needs_work"
)

// Authorship buckets. They are never collapsed into one anonymous bucket.
const (
	AuthorshipAnonymous     = "anonymous"
	AuthorshipAnonymousAuth = "anonymous_auth"
	AuthorshipIdentified    = "identified"
)

// Authorship describes who submitted. Optional fields are NULL when unknown, never empty placeholders.
type Authorship struct {
	IsAnon      bool    `gorm:"not null" json:"is_anon"`
	UID         *string `gorm:"size:128;index" json:"uid,omitempty"`
	DisplayName *string `gorm:"size:255" json:"display_name,omitempty"`
	Email       *string `gorm:"size:255" json:"email,omitempty"`
}

// Kind classifies the authorship descriptor.
func (a Authorship) Kind() string {
	switch {
	case a.UID == nil:
		return AuthorshipAnonymous
	case a.IsAnon:
		return AuthorshipAnonymousAuth
	default:
		return AuthorshipIdentified
	}
}

// IsAuthor reports whether uid is the recorded author.
func (a Authorship) IsAuthor(uid string) bool {
	uid = strings.TrimSpace(uid)
	return uid != "" && a.UID != nil && *a.UID == uid
}

// SpaceSubmission is an answer set collected under a (space, lesson) pair.
type SpaceSubmission struct {
	ID                 string            `gorm:"primaryKey;size:64" json:"id"`
	SpaceID            string            `gorm:"size:64;not null;index" json:"space_id"`
	LessonID           string            `gorm:"size:64;not null;index" json:"lesson_id"`
	Answers            datatypes.JSONMap `gorm:"type:json" json:"answers"`
	Author             Authorship        `gorm:"embedded" json:"author"`
	Status             string            `gorm:"size:16;not null" json:"status"`
	FeedbackText       *string           `gorm:"type:text" json:"feedback_text"`
	FeedbackUpdatedAt  *time.Time        `json:"feedback_updated_at"`
	FeedbackTeacherUID *string           `gorm:"size:128" json:"feedback_teacher_uid"`
	ReviewedAt         *time.Time        `json:"reviewed_at"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// IsLocked reports whether the submitter may no longer edit the answers.
func (s SpaceSubmission) IsLocked() bool {
	return submissionLocked(s.Status, s.ReviewedAt)
}

// LibrarySubmission is a per-task answer from the student library flow.
type LibrarySubmission struct {
	ID         string            `gorm:"primaryKey;size:64" json:"id"`
	LessonID   string            `gorm:"size:64;not null;index" json:"lesson_id"`
	TaskIndex  int               `gorm:"not null" json:"task_index"`
	TaskType   string            `gorm:"size:64;index" json:"task_type"`
	Answer     datatypes.JSONMap `gorm:"type:json" json:"answer"`
	IsCorrect  *bool             `gorm:"index" json:"is_correct"`
	Author     Authorship        `gorm:"embedded" json:"author"`
	Status     string            `gorm:"size:16;not null" json:"status"`
	ReviewedAt *time.Time        `json:"reviewed_at"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// TableName keeps the historical collection name.
func (LibrarySubmission) TableName() string {
	return "lesson_submissions"
}

// IsLocked reports whether the submitter may no longer edit the answer.
func (s LibrarySubmission) IsLocked() bool {
	return submissionLocked(s.Status, s.ReviewedAt)
}

func submissionLocked(status string, reviewedAt *time.Time) bool {
	return status == SubmissionStatusReviewed || (reviewedAt != nil && !reviewedAt.IsZero())
}
