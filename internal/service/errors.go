package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of them.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrExhaustedRetries       = errors.New("exhausted retries")
	ErrUpstreamFailure        = errors.New("upstream failure")
)

var (
	// ErrAnonymousIdentity indicates an anonymous identity tried to act as a profile holder.
	ErrAnonymousIdentity = fmt.Errorf("%w: anonymous identity", ErrAuthenticationRequired)
	// ErrUnauthorized indicates the caller lacks the role or approval the operation needs.
	ErrUnauthorized = fmt.Errorf("%w: insufficient role", ErrAuthorizationDenied)
	// ErrNotOwner indicates the caller neither owns the record nor is an admin.
	ErrNotOwner = fmt.Errorf("%w: not owner", ErrAuthorizationDenied)
	// ErrNotApprovedTeacher indicates teacher scope was requested without approval.
	ErrNotApprovedTeacher = fmt.Errorf("%w: teacher approval required", ErrAuthorizationDenied)
	// ErrSubmissionLocked indicates a reviewed submission can no longer be edited.
	ErrSubmissionLocked = fmt.Errorf("%w: submission locked", ErrAuthorizationDenied)
	// ErrSpaceClosed indicates the space refuses anonymous submissions.
	ErrSpaceClosed = fmt.Errorf("%w: space closed", ErrAuthorizationDenied)
	// ErrInvalidAdminToken indicates the shared admin token did not match.
	ErrInvalidAdminToken = fmt.Errorf("%w: invalid admin token", ErrAuthorizationDenied)

	// ErrProfileNotFound indicates the profile does not exist.
	ErrProfileNotFound = fmt.Errorf("%w: profile", ErrNotFound)
	// ErrDraftNotFound indicates the draft exists in no known location.
	ErrDraftNotFound = fmt.Errorf("%w: draft", ErrNotFound)
	// ErrPublishedLessonNotFound indicates no published copy exists.
	ErrPublishedLessonNotFound = fmt.Errorf("%w: published lesson", ErrNotFound)
	// ErrSpaceNotFound indicates the space does not exist.
	ErrSpaceNotFound = fmt.Errorf("%w: space", ErrNotFound)
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = fmt.Errorf("%w: submission", ErrNotFound)
	// ErrLessonNotInSpace indicates the lesson is not assigned to the space.
	ErrLessonNotInSpace = fmt.Errorf("%w: lesson not assigned to space", ErrNotFound)
)

func validationError(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}
