package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.UserProfile{},
		&models.PublishedLesson{},
		&models.Space{},
		&models.SpaceSubmission{},
		&models.LibrarySubmission{},
		&models.AuditEvent{},
	))
	require.NoError(t, repository.MigrateDraftLocations(db))
	return db
}

type fixture struct {
	db        *gorm.DB
	profiles  repository.ProfileRepository
	drafts    repository.LessonDraftRepository
	published repository.PublishedLessonRepository
	spaces    repository.SpaceRepository
	subs      repository.SubmissionRepository
	library   repository.LibrarySubmissionRepository
	auditRepo repository.AuditRepository
	audit     AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupServiceDB(t)
	auditRepo := repository.NewAuditRepository(db)
	return &fixture{
		db:        db,
		profiles:  repository.NewProfileRepository(db),
		drafts:    repository.NewLessonDraftRepository(db),
		published: repository.NewPublishedLessonRepository(db),
		spaces:    repository.NewSpaceRepository(db),
		subs:      repository.NewSubmissionRepository(db),
		library:   repository.NewLibrarySubmissionRepository(db),
		auditRepo: auditRepo,
		audit:     NewAuditService(auditRepo, testLogger()),
	}
}

type profileOption func(*models.UserProfile)

func asAdmin() profileOption {
	return func(p *models.UserProfile) { p.Roles.Admin = models.BoolPtr(true) }
}

func asApprovedTeacher() profileOption {
	return func(p *models.UserProfile) {
		p.Roles.Teacher = models.BoolPtr(true)
		p.TeacherStatus = models.ApprovalApproved
	}
}

func asPendingTeacher() profileOption {
	return func(p *models.UserProfile) {
		p.Roles.Teacher = models.BoolPtr(true)
		p.TeacherStatus = models.ApprovalPending
	}
}

func (f *fixture) profile(t *testing.T, uid string, opts ...profileOption) models.UserProfile {
	t.Helper()
	profile := models.UserProfile{
		UID:           uid,
		Email:         uid + "@example.com",
		DisplayName:   "User " + uid,
		Roles:         models.ProfileRoles{Student: models.BoolPtr(true)},
		TeacherStatus: models.ApprovalNone,
		CreatorStatus: models.ApprovalNone,
	}
	for _, opt := range opts {
		opt(&profile)
	}
	require.NoError(t, f.profiles.Create(context.Background(), &profile))
	return profile
}

func (f *fixture) draft(t *testing.T, id, owner, title, source string) models.LessonDraft {
	t.Helper()
	draft := models.LessonDraft{
		ID:           id,
		OwnerID:      owner,
		Title:        title,
		SourceText:   source,
		Level:        "B1",
		Language:     "en",
		Tasks:        []models.LessonTask{{Type: "mcq", Prompt: "Pick one", Options: []string{"a", "b"}, Answer: "a"}},
		Status:       models.LessonStatusDraft,
		PublishState: models.PublishStateNone,
	}
	require.NoError(t, f.drafts.Create(context.Background(), &draft))
	return draft
}

func (f *fixture) auditEvents(t *testing.T, action string) []models.AuditEvent {
	t.Helper()
	events, _, err := f.auditRepo.List(context.Background(), repository.AuditFilter{Action: action})
	require.NoError(t, err)
	return events
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
