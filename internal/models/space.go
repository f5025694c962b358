package models

import (
	"time"

	"gorm.io/datatypes"
)

// SpaceCodeColumns lists the columns a share code has been stored under, newest first.
var SpaceCodeColumns = []string{"code", "join_code", "share_code"}

// Space is a teacher-owned classroom that learners join by code.
type Space struct {
	ID              string                      `gorm:"primaryKey;size:64" json:"id"`
	OwnerID         string                      `gorm:"size:128;not null;index" json:"owner_id"`
	Title           string                      `gorm:"size:255;not null" json:"title"`
	Code            string                      `gorm:"size:16;index" json:"code"`
	LegacyJoinCode  *string                     `gorm:"column:join_code;size:16;index" json:"-"`
	LegacyShareCode *string                     `gorm:"column:share_code;size:16;index" json:"-"`
	IsOpen          bool                        `json:"is_open"`
	LessonIDs       datatypes.JSONSlice[string] `json:"lesson_ids"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

// HasLesson reports whether the lesson is assigned to the space.
func (s Space) HasLesson(lessonID string) bool {
	for _, id := range s.LessonIDs {
		if id == lessonID {
			return true
		}
	}
	return false
}

// ShareCode returns the code under whichever column it was stored.
func (s Space) ShareCode() string {
	if s.Code != "" {
		return s.Code
	}
	if s.LegacyJoinCode != nil && *s.LegacyJoinCode != "" {
		return *s.LegacyJoinCode
	}
	if s.LegacyShareCode != nil {
		return *s.LegacyShareCode
	}
	return ""
}
