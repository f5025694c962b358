package dto

import (
	"time"

	"github.com/noah-isme/skole-api/internal/models"
)

// EnsureProfileRequest is the self-heal payload sent after every login.
type EnsureProfileRequest struct {
	UID         string `json:"uid" validate:"omitempty,max=128"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	DisplayName string `json:"displayName" validate:"omitempty,max=255"`
	Locale      string `json:"locale" validate:"omitempty,max=16"`
}

// ApplyRequest asks for teacher or creator approval.
type ApplyRequest struct {
	Kind string `json:"kind" validate:"required,oneof=teacher creator"`
}

// ApplicationDecisionRequest is an admin verdict on an application.
type ApplicationDecisionRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=teacher creator"`
	Approve *bool  `json:"approve" validate:"required"`
}

// ProfileResponse serialises a profile. Flags never written are omitted rather than reported false.
type ProfileResponse struct {
	UID           string          `json:"uid"`
	Email         string          `json:"email,omitempty"`
	DisplayName   string          `json:"display_name,omitempty"`
	Locale        string          `json:"locale,omitempty"`
	Org           string          `json:"org,omitempty"`
	Roles         map[string]bool `json:"roles"`
	TeacherStatus string          `json:"teacher_status"`
	CreatorStatus string          `json:"creator_status"`
	Caps          map[string]bool `json:"caps"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
	LoginCount    int             `json:"login_count"`
}

// MeResponse bundles the profile with the modes it unlocks.
type MeResponse struct {
	Profile     ProfileResponse `json:"profile"`
	Modes       []string        `json:"modes"`
	DefaultMode string          `json:"default_mode"`
}

// NewProfileResponse converts a profile model.
func NewProfileResponse(model models.UserProfile) ProfileResponse {
	roles := map[string]bool{}
	putFlag(roles, "student", model.Roles.Student)
	putFlag(roles, "teacher", model.Roles.Teacher)
	putFlag(roles, "admin", model.Roles.Admin)
	putFlag(roles, "parent", model.Roles.Parent)
	putFlag(roles, "creator", model.Roles.Creator)

	caps := map[string]bool{}
	putFlag(caps, "publish", model.Caps.Publish)
	putFlag(caps, "sell", model.Caps.Sell)
	putFlag(caps, "pdf", model.Caps.PDF)
	putFlag(caps, "tts", model.Caps.TTS)
	putFlag(caps, "vocab", model.Caps.Vocab)

	return ProfileResponse{
		UID:           model.UID,
		Email:         model.Email,
		DisplayName:   model.DisplayName,
		Locale:        model.Locale,
		Org:           model.Org,
		Roles:         roles,
		TeacherStatus: model.TeacherStatus,
		CreatorStatus: model.CreatorStatus,
		Caps:          caps,
		LastLoginAt:   model.LastLoginAt,
		LoginCount:    model.LoginCount,
	}
}

func putFlag(target map[string]bool, key string, value *bool) {
	if value != nil {
		target[key] = *value
	}
}
