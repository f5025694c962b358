package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/observability"
	"github.com/noah-isme/skole-api/internal/repository"
)

// authorshipFor classifies the caller into one of the three authorship shapes. Unknown fields stay nil.
func authorshipFor(identity *Identity) models.Authorship {
	if !identity.SignedIn() {
		return models.Authorship{IsAnon: true}
	}

	uid := strings.TrimSpace(identity.UID)
	if identity.Anonymous {
		return models.Authorship{IsAnon: true, UID: &uid}
	}

	return models.Authorship{
		IsAnon:      false,
		UID:         &uid,
		DisplayName: stringPtr(identity.DisplayName),
		Email:       stringPtr(identity.Email),
	}
}

func (s *spaceService) Submit(ctx context.Context, spaceID, lessonID string, req dto.SubmitAnswersRequest, identity *Identity) (dto.SpaceSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "spaces.submit")
	span.SetAttributes(attribute.String("space.id", spaceID), attribute.String("lesson.id", lessonID))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}

	space, err := s.getSpace(ctx, spaceID)
	if err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}
	if !space.HasLesson(lessonID) {
		return dto.SpaceSubmissionResponse{}, ErrLessonNotInSpace
	}

	author := authorshipFor(identity)
	if author.IsAnon && !space.IsOpen {
		span.SetStatus(codes.Error, "space_closed")
		return dto.SpaceSubmissionResponse{}, ErrSpaceClosed
	}

	submission := models.SpaceSubmission{
		ID:       uuid.NewString(),
		SpaceID:  space.ID,
		LessonID: lessonID,
		Answers:  datatypes.JSONMap(req.Answers),
		Author:   author,
		Status:   models.SubmissionStatusNew,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SpaceSubmissionResponse{}, err
	}

	kind := author.Kind()
	span.SetAttributes(attribute.String("submission.authorship", kind))
	observability.SpaceSubmissions().WithLabelValues(kind).Inc()

	response := dto.NewSpaceSubmissionResponse(submission)
	s.emit(ctx, SpaceEventSubmissionCreated, response)
	return response, nil
}

func (s *spaceService) UpdateAnswers(ctx context.Context, spaceID, submissionID string, req dto.SubmitAnswersRequest, identity *Identity) (dto.SpaceSubmissionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}
	if !identity.SignedIn() {
		return dto.SpaceSubmissionResponse{}, ErrAuthenticationRequired
	}

	submission, err := s.spaceSubmission(ctx, spaceID, submissionID)
	if err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}
	if !submission.Author.IsAuthor(identity.UID) {
		return dto.SpaceSubmissionResponse{}, ErrNotOwner
	}
	if submission.IsLocked() {
		return dto.SpaceSubmissionResponse{}, ErrSubmissionLocked
	}

	submission.Answers = datatypes.JSONMap(req.Answers)
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}

	response := dto.NewSpaceSubmissionResponse(submission)
	s.emit(ctx, SpaceEventSubmissionUpdated, response)
	return response, nil
}

func (s *spaceService) Review(ctx context.Context, actorUID, spaceID, submissionID string, req dto.ReviewSubmissionRequest) (dto.SpaceSubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "spaces.review")
	span.SetAttributes(attribute.String("space.id", spaceID), attribute.String("submission.id", submissionID))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}

	actor, err := loadActor(ctx, s.profiles, actorUID)
	if err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}
	if !authz.IsApprovedTeacher(actor) {
		return dto.SpaceSubmissionResponse{}, ErrNotApprovedTeacher
	}

	space, err := s.getSpace(ctx, spaceID)
	if err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}
	if space.OwnerID != actorUID {
		return dto.SpaceSubmissionResponse{}, ErrNotOwner
	}

	submission, err := s.spaceSubmission(ctx, space.ID, submissionID)
	if err != nil {
		return dto.SpaceSubmissionResponse{}, err
	}

	now := s.now().UTC()
	feedback := plainText(s.sanitizer, req.Feedback)
	teacherUID := actorUID
	submission.Status = req.Status
	submission.FeedbackText = &feedback
	submission.FeedbackUpdatedAt = &now
	submission.FeedbackTeacherUID = &teacherUID
	if req.Status == models.SubmissionStatusReviewed && submission.ReviewedAt == nil {
		submission.ReviewedAt = &now
	}

	if err := s.submissions.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SpaceSubmissionResponse{}, err
	}

	s.logger.Info().Str("submission_id", submission.ID).Str("status", submission.Status).Msg("submission reviewed")

	response := dto.NewSpaceSubmissionResponse(submission)
	s.emit(ctx, SpaceEventSubmissionReviewed, response)
	return response, nil
}

func (s *spaceService) ListSubmissions(ctx context.Context, actorUID, spaceID, lessonID string) ([]dto.SpaceSubmissionResponse, error) {
	space, err := s.ownedSpace(ctx, actorUID, spaceID)
	if err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		SpaceID:  space.ID,
		LessonID: strings.TrimSpace(lessonID),
	})
	if err != nil {
		return nil, err
	}

	responses := make([]dto.SpaceSubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, dto.NewSpaceSubmissionResponse(submission))
	}
	return responses, nil
}

func (s *spaceService) spaceSubmission(ctx context.Context, spaceID, submissionID string) (models.SpaceSubmission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SpaceSubmission{}, ErrSubmissionNotFound
		}
		return models.SpaceSubmission{}, err
	}
	if submission.SpaceID != spaceID {
		return models.SpaceSubmission{}, ErrSubmissionNotFound
	}
	return submission, nil
}

func (s *spaceService) emit(ctx context.Context, eventType string, submission dto.SpaceSubmissionResponse) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(ctx, dto.SpaceEvent{
		Type:       eventType,
		SpaceID:    submission.SpaceID,
		Submission: submission,
		SentAt:     s.now().UTC(),
	})
}
