package models

import (
	"time"

	"gorm.io/datatypes"
)

// Draft status values mirrored from the publish sub-state for display.
const (
	LessonStatusDraft     = "draft"
	LessonStatusPublished = "published"
)

// Publish sub-state values.
const (
	PublishStateNone      = "none"
	PublishStatePublished = "published"
	PublishStateRejected  = "rejected"
)

// Moderation states of a published copy.
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

// Visibility values of a published copy.
const (
	VisibilityPublic   = "public"
	VisibilityUnlisted = "unlisted"
	VisibilityPrivate  = "private"
)

// Draft storage locations, in lookup precedence order.
const (
	DraftLocationPrimary = "lesson_drafts"
	DraftLocationLegacy  = "legacy_lessons"
)

// LessonTask is one ordered exercise attached to a lesson.
type LessonTask struct {
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer,omitempty"`
}

// LessonDraft is the editable authoring copy of a lesson. The same shape is stored in the
// primary and the legacy location.
type LessonDraft struct {
	ID           string                          `gorm:"primaryKey;size:64" json:"id"`
	OwnerID      string                          `gorm:"size:128;not null;index" json:"owner_id"`
	Title        string                          `gorm:"size:255" json:"title"`
	SourceText   string                          `gorm:"type:text" json:"source_text"`
	Level        string                          `gorm:"size:8" json:"level"`
	Language     string                          `gorm:"size:32" json:"language"`
	Topics       datatypes.JSONSlice[string]     `json:"topics"`
	TextType     string                          `gorm:"size:64" json:"text_type"`
	Tasks        datatypes.JSONSlice[LessonTask] `json:"tasks"`
	Status       string                          `gorm:"size:16;not null;default:'draft'" json:"status"`
	PublishState string                          `gorm:"size:16;not null;default:'none'" json:"publish_state"`
	PublishedAt  *time.Time                      `json:"published_at"`
	RejectedAt   *time.Time                      `json:"rejected_at"`
	CreatedAt    time.Time                       `json:"created_at"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// TableName keeps the primary location explicit.
func (LessonDraft) TableName() string {
	return DraftLocationPrimary
}

// SignedBy is the attestation snapshot taken when a lesson is published.
type SignedBy struct {
	UID                string     `gorm:"size:128" json:"uid"`
	DisplayName        string     `gorm:"size:255" json:"display_name"`
	Email              string     `gorm:"size:255" json:"email"`
	Org                string     `gorm:"size:255" json:"org"`
	AttestationVersion string     `gorm:"size:16" json:"attestation_version"`
	SignedAt           *time.Time `json:"signed_at"`
	ViaAdmin           bool       `json:"via_admin"`
}

// PublishedLesson is the point-in-time projection students read. It shares the draft id.
type PublishedLesson struct {
	ID                   string                          `gorm:"primaryKey;size:64" json:"id"`
	OwnerID              string                          `gorm:"size:128;not null;index" json:"owner_id"`
	Title                string                          `gorm:"size:255" json:"title"`
	SourceText           string                          `gorm:"type:text" json:"source_text"`
	Level                string                          `gorm:"size:8;index" json:"level"`
	Language             string                          `gorm:"size:32;index" json:"language"`
	Topics               datatypes.JSONSlice[string]     `json:"topics"`
	TextType             string                          `gorm:"size:64" json:"text_type"`
	Tasks                datatypes.JSONSlice[LessonTask] `json:"tasks"`
	IsActive             bool                            `gorm:"index" json:"is_active"`
	Visibility           string                          `gorm:"size:16;not null;default:'public'" json:"visibility"`
	PublishState         string                          `gorm:"size:16" json:"publish_state"`
	ModerationStatus     string                          `gorm:"size:16" json:"moderation_status"`
	ModerationReviewedBy *string                         `gorm:"size:128" json:"moderation_reviewed_by"`
	ModerationReviewedAt *time.Time                      `json:"moderation_reviewed_at"`
	SignedBy             SignedBy                        `gorm:"embedded;embeddedPrefix:signed_by_" json:"signed_by"`
	SourceLocation       string                          `gorm:"size:32" json:"source_location"`
	PublishedAt          *time.Time                      `json:"published_at"`
	UnpublishedAt        *time.Time                      `json:"unpublished_at"`
	UnpublishedBy        *string                         `gorm:"size:128" json:"unpublished_by"`
	CreatedAt            time.Time                       `json:"created_at"`
	UpdatedAt            time.Time                       `json:"updated_at"`
}

// CopyContent overwrites the content snapshot with the draft's current content.
func (p *PublishedLesson) CopyContent(draft LessonDraft) {
	p.ID = draft.ID
	p.OwnerID = draft.OwnerID
	p.Title = draft.Title
	p.SourceText = draft.SourceText
	p.Level = draft.Level
	p.Language = draft.Language
	p.Topics = append(datatypes.JSONSlice[string]{}, draft.Topics...)
	p.TextType = draft.TextType
	p.Tasks = append(datatypes.JSONSlice[LessonTask]{}, draft.Tasks...)
}
