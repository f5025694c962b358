package models

import "time"

// Approval workflow states shared by teacher and creator applications.
const (
	ApprovalNone     = "none"
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// ProfileRoles holds capability flags. A nil flag was never written and is distinct from false.
type ProfileRoles struct {
	Student *bool `json:"student,omitempty"`
	Teacher *bool `json:"teacher,omitempty"`
	Admin   *bool `json:"admin,omitempty"`
	Parent  *bool `json:"parent,omitempty"`
	Creator *bool `json:"creator,omitempty"`
}

// ProfileCaps holds fine-grained feature flags.
type ProfileCaps struct {
	Publish *bool `json:"publish,omitempty"`
	Sell    *bool `json:"sell,omitempty"`
	PDF     *bool `json:"pdf,omitempty"`
	TTS     *bool `json:"tts,omitempty"`
	Vocab   *bool `json:"vocab,omitempty"`
}

// UserProfile is the per-identity record. Anonymous identities never get one.
type UserProfile struct {
	UID              string       `gorm:"primaryKey;size:128" json:"uid"`
	Email            string       `gorm:"size:255" json:"email"`
	DisplayName      string       `gorm:"size:255" json:"display_name"`
	Locale           string       `gorm:"size:16" json:"locale"`
	Org              string       `gorm:"size:255" json:"org"`
	Roles            ProfileRoles `gorm:"embedded;embeddedPrefix:role_" json:"roles"`
	TeacherStatus    string       `gorm:"size:16" json:"teacher_status"`
	CreatorStatus    string       `gorm:"size:16" json:"creator_status"`
	Caps             ProfileCaps  `gorm:"embedded;embeddedPrefix:cap_" json:"caps"`
	TeacherAppliedAt *time.Time   `json:"teacher_applied_at"`
	CreatorAppliedAt *time.Time   `json:"creator_applied_at"`
	FirstLoginAt     *time.Time   `json:"first_login_at"`
	LastLoginAt      *time.Time   `json:"last_login_at"`
	LoginCount       int          `gorm:"not null;default:0" json:"login_count"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Flag reports the value of an optional flag, treating absent as false.
func Flag(value *bool) bool {
	return value != nil && *value
}

// BoolPtr returns a pointer to the provided value.
func BoolPtr(value bool) *bool {
	return &value
}
