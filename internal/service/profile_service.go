package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/authz"
	"github.com/noah-isme/skole-api/internal/dto"
	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
)

// ProfileService owns profile creation, self-heal and role applications.
type ProfileService interface {
	EnsureProfile(ctx context.Context, identity *Identity, req dto.EnsureProfileRequest) (dto.ProfileResponse, error)
	Get(ctx context.Context, uid string) (models.UserProfile, error)
	Me(ctx context.Context, uid string) (dto.MeResponse, error)
	Apply(ctx context.Context, identity *Identity, req dto.ApplyRequest) (dto.ProfileResponse, error)
	Decide(ctx context.Context, adminUID, targetUID string, req dto.ApplicationDecisionRequest) (dto.ProfileResponse, error)
}

type profileService struct {
	repo      repository.ProfileRepository
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProfileService constructs the profile service.
func NewProfileService(repo repository.ProfileRepository, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		repo:      repo,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "profile_service").Logger(),
		now:       time.Now,
	}
}

func (s *profileService) EnsureProfile(ctx context.Context, identity *Identity, req dto.EnsureProfileRequest) (dto.ProfileResponse, error) {
	if !identity.SignedIn() {
		return dto.ProfileResponse{}, ErrAuthenticationRequired
	}
	if identity.Anonymous {
		return dto.ProfileResponse{}, ErrAnonymousIdentity
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}
	if req.UID != "" && req.UID != identity.UID {
		return dto.ProfileResponse{}, ErrNotOwner
	}

	email := firstNonEmpty(identity.Email, req.Email)
	displayName := firstNonEmpty(identity.DisplayName, req.DisplayName)
	now := s.now().UTC()

	profile, err := s.repo.Get(ctx, identity.UID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProfileResponse{}, err
		}

		profile = models.UserProfile{
			UID:          identity.UID,
			Email:        email,
			DisplayName:  displayName,
			Locale:       strings.TrimSpace(req.Locale),
			FirstLoginAt: &now,
			LastLoginAt:  &now,
			LoginCount:   1,
		}
		backfillProfile(&profile)

		if err := s.repo.Create(ctx, &profile); err != nil {
			return dto.ProfileResponse{}, err
		}
		s.logger.Info().Str("uid", profile.UID).Msg("profile created")
		return dto.NewProfileResponse(profile), nil
	}

	backfillProfile(&profile)
	if profile.Email == "" {
		profile.Email = email
	}
	if profile.DisplayName == "" {
		profile.DisplayName = displayName
	}
	if profile.Locale == "" {
		profile.Locale = strings.TrimSpace(req.Locale)
	}
	if profile.FirstLoginAt == nil {
		profile.FirstLoginAt = &now
	}
	profile.LastLoginAt = &now
	profile.LoginCount++

	if err := s.repo.Save(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	profile, err := s.repo.Get(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UserProfile{}, ErrProfileNotFound
		}
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (s *profileService) Me(ctx context.Context, uid string) (dto.MeResponse, error) {
	profile, err := s.Get(ctx, uid)
	if err != nil {
		return dto.MeResponse{}, err
	}

	modes := authz.AllowedModes(&profile)
	names := make([]string, 0, len(modes))
	for _, mode := range modes {
		names = append(names, string(mode))
	}

	return dto.MeResponse{
		Profile:     dto.NewProfileResponse(profile),
		Modes:       names,
		DefaultMode: string(authz.DefaultMode(&profile)),
	}, nil
}

func (s *profileService) Apply(ctx context.Context, identity *Identity, req dto.ApplyRequest) (dto.ProfileResponse, error) {
	if !identity.SignedIn() {
		return dto.ProfileResponse{}, ErrAuthenticationRequired
	}
	if identity.Anonymous {
		return dto.ProfileResponse{}, ErrAnonymousIdentity
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}

	profile, err := s.Get(ctx, identity.UID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	now := s.now().UTC()
	switch req.Kind {
	case string(authz.RoleTeacher):
		profile.Roles.Teacher = models.BoolPtr(true)
		if profile.TeacherStatus != models.ApprovalApproved {
			profile.TeacherStatus = models.ApprovalPending
			profile.TeacherAppliedAt = &now
		}
	case string(authz.RoleCreator):
		profile.Roles.Creator = models.BoolPtr(true)
		if profile.CreatorStatus != models.ApprovalApproved {
			profile.CreatorStatus = models.ApprovalPending
			profile.CreatorAppliedAt = &now
		}
	}

	if err := s.repo.Save(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	s.logger.Info().Str("uid", profile.UID).Str("kind", req.Kind).Msg("role application recorded")
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) Decide(ctx context.Context, adminUID, targetUID string, req dto.ApplicationDecisionRequest) (dto.ProfileResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}

	actor, err := loadActor(ctx, s.repo, adminUID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	entry := AuditEntry{
		ActorID:    adminUID,
		ActorRole:  authz.PrimaryRole(actor),
		Action:     AuditActionProfileDecision,
		EntityType: auditEntityProfile,
		EntityID:   targetUID,
		Metadata: map[string]interface{}{
			"kind":    req.Kind,
			"approve": *req.Approve,
		},
	}

	if !authz.IsAdmin(actor) {
		s.recordAudit(ctx, entry, models.AuditOutcomeBlocked, "admin role required")
		return dto.ProfileResponse{}, ErrUnauthorized
	}

	profile, err := s.Get(ctx, targetUID)
	if err != nil {
		return dto.ProfileResponse{}, err
	}

	status := models.ApprovalRejected
	if *req.Approve {
		status = models.ApprovalApproved
	}

	switch req.Kind {
	case string(authz.RoleTeacher):
		profile.TeacherStatus = status
		if *req.Approve {
			profile.Roles.Teacher = models.BoolPtr(true)
		}
	case string(authz.RoleCreator):
		profile.CreatorStatus = status
		if *req.Approve {
			profile.Roles.Creator = models.BoolPtr(true)
		}
	}

	if err := s.repo.Save(ctx, &profile); err != nil {
		return dto.ProfileResponse{}, err
	}

	s.recordAudit(ctx, entry, models.AuditOutcomeSucceeded, status)
	return dto.NewProfileResponse(profile), nil
}

func (s *profileService) recordAudit(ctx context.Context, entry AuditEntry, outcome, reason string) {
	if s.audit == nil {
		return
	}
	entry.Outcome = outcome
	entry.Reason = reason
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record audit event")
	}
}

// backfillProfile fills fields that were never written. Present values, including false, are kept.
func backfillProfile(profile *models.UserProfile) {
	if profile.Roles.Student == nil {
		profile.Roles.Student = models.BoolPtr(true)
	}
	if profile.TeacherStatus == "" {
		profile.TeacherStatus = models.ApprovalNone
	}
	if profile.CreatorStatus == "" {
		profile.CreatorStatus = models.ApprovalNone
	}
	if profile.Caps.Publish == nil {
		profile.Caps.Publish = models.BoolPtr(false)
	}
	if profile.Caps.Sell == nil {
		profile.Caps.Sell = models.BoolPtr(false)
	}
	if profile.Caps.PDF == nil {
		profile.Caps.PDF = models.BoolPtr(true)
	}
	if profile.Caps.TTS == nil {
		profile.Caps.TTS = models.BoolPtr(true)
	}
	if profile.Caps.Vocab == nil {
		profile.Caps.Vocab = models.BoolPtr(true)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
