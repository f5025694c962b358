// Package authz decides what a profile may do. Every function is pure: the caller passes the
// profile snapshot explicitly and re-evaluates whenever it changes.
package authz

import "github.com/noah-isme/skole-api/internal/models"

// Role names a capability flag on a profile.
type Role string

// Known roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
	RoleParent  Role = "parent"
	RoleCreator Role = "creator"
)

// Mode is a UI mode a user may operate in.
type Mode string

// Known modes.
const (
	ModeStudent Mode = "student"
	ModeParent  Mode = "parent"
	ModeTeacher Mode = "teacher"
	ModeCreator Mode = "creator"
	ModeAdmin   Mode = "admin"
)

// Requirement describes the conditions an operation needs. Set fields are AND-combined.
type Requirement struct {
	Role            Role
	ApprovedTeacher bool
}

// IsZero reports whether the requirement imposes nothing.
func (r Requirement) IsZero() bool {
	return r.Role == "" && !r.ApprovedTeacher
}

// ParseRole maps a string onto a known role.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleParent, RoleCreator:
		return Role(value), true
	default:
		return "", false
	}
}

// HasRole reports whether the role flag is explicitly true.
func HasRole(profile *models.UserProfile, role Role) bool {
	if profile == nil {
		return false
	}
	switch role {
	case RoleStudent:
		return models.Flag(profile.Roles.Student)
	case RoleTeacher:
		return models.Flag(profile.Roles.Teacher)
	case RoleAdmin:
		return models.Flag(profile.Roles.Admin)
	case RoleParent:
		return models.Flag(profile.Roles.Parent)
	case RoleCreator:
		return models.Flag(profile.Roles.Creator)
	default:
		return false
	}
}

// IsAllowed decides whether an operation with the given requirement may proceed.
// An absent profile is denied whenever anything is required.
func IsAllowed(profile *models.UserProfile, req Requirement) bool {
	if req.IsZero() {
		return true
	}
	if profile == nil {
		return false
	}
	if req.Role != "" && !HasRole(profile, req.Role) {
		return false
	}
	if req.ApprovedTeacher && profile.TeacherStatus != models.ApprovalApproved {
		return false
	}
	return true
}

// IsAdmin reports whether the profile holds the admin role.
func IsAdmin(profile *models.UserProfile) bool {
	return HasRole(profile, RoleAdmin)
}

// IsApprovedTeacher requires both the teacher flag and an approved application.
func IsApprovedTeacher(profile *models.UserProfile) bool {
	return IsAllowed(profile, Requirement{Role: RoleTeacher, ApprovedTeacher: true})
}

// IsApprovedCreator reports creator privilege. An approved teacher is implicitly a creator.
func IsApprovedCreator(profile *models.UserProfile) bool {
	if profile == nil {
		return false
	}
	if HasRole(profile, RoleCreator) && profile.CreatorStatus == models.ApprovalApproved {
		return true
	}
	return IsApprovedTeacher(profile)
}

// CanCreateContent reports whether the profile may author lesson drafts.
func CanCreateContent(profile *models.UserProfile) bool {
	return IsAdmin(profile) || IsApprovedCreator(profile)
}

// CanPublish reports whether the profile may self-publish a lesson.
func CanPublish(profile *models.UserProfile) bool {
	if profile == nil {
		return false
	}
	return IsAdmin(profile) || profile.TeacherStatus == models.ApprovalApproved || models.Flag(profile.Caps.Publish)
}

// AllowedModes lists the modes the profile may switch into. Student is always present.
func AllowedModes(profile *models.UserProfile) []Mode {
	modes := []Mode{ModeStudent}
	if profile == nil {
		return modes
	}
	if HasRole(profile, RoleParent) {
		modes = append(modes, ModeParent)
	}
	if IsApprovedTeacher(profile) {
		modes = append(modes, ModeTeacher)
	}
	if IsApprovedCreator(profile) {
		modes = append(modes, ModeCreator)
	}
	if IsAdmin(profile) {
		modes = append(modes, ModeAdmin)
	}
	return modes
}

// HasMode reports whether mode is among the allowed modes.
func HasMode(profile *models.UserProfile, mode Mode) bool {
	for _, allowed := range AllowedModes(profile) {
		if allowed == mode {
			return true
		}
	}
	return false
}

// DefaultMode picks the starting mode with fixed precedence admin > teacher > parent > student.
func DefaultMode(profile *models.UserProfile) Mode {
	switch {
	case IsAdmin(profile):
		return ModeAdmin
	case IsApprovedTeacher(profile):
		return ModeTeacher
	case HasRole(profile, RoleParent):
		return ModeParent
	default:
		return ModeStudent
	}
}

// PrimaryRole is the role label recorded in audit entries.
func PrimaryRole(profile *models.UserProfile) string {
	if profile == nil {
		return "anonymous"
	}
	return string(DefaultMode(profile))
}
