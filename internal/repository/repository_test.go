package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

func setupTestDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models...))
	return db
}

func TestLessonDraftRepositoryPrefersPrimaryLocation(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateDraftLocations(db))
	repo := NewLessonDraftRepository(db)
	ctx := context.Background()

	legacy := models.LessonDraft{ID: "shared", OwnerID: "u1", Title: "Legacy"}
	require.NoError(t, db.Table(models.DraftLocationLegacy).Create(&legacy).Error)
	primary := models.LessonDraft{ID: "shared", OwnerID: "u1", Title: "Primary"}
	require.NoError(t, repo.Create(ctx, &primary))

	found, location, err := repo.Locate(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, models.DraftLocationPrimary, location)
	require.Equal(t, "Primary", found.Title)
}

func TestLessonDraftRepositoryFallsBackToLegacy(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateDraftLocations(db))
	repo := NewLessonDraftRepository(db)
	ctx := context.Background()

	legacy := models.LessonDraft{ID: "old", OwnerID: "u1", Title: "Legacy only"}
	require.NoError(t, db.Table(models.DraftLocationLegacy).Create(&legacy).Error)

	found, location, err := repo.Locate(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, models.DraftLocationLegacy, location)
	require.Equal(t, "Legacy only", found.Title)

	found.Title = "Edited"
	require.NoError(t, repo.Save(ctx, location, &found))

	var primaryCount int64
	require.NoError(t, db.Table(models.DraftLocationPrimary).Where("id = ?", "old").Count(&primaryCount).Error)
	require.Zero(t, primaryCount)

	reloaded, _, err := repo.Locate(ctx, "old")
	require.NoError(t, err)
	require.Equal(t, "Edited", reloaded.Title)

	_, _, err = repo.Locate(ctx, "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLessonDraftRepositoryListByOwnerSkipsShadowedLegacyCopies(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, MigrateDraftLocations(db))
	repo := NewLessonDraftRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.LessonDraft{ID: "a", OwnerID: "u1", Title: "A"}))
	require.NoError(t, db.Table(models.DraftLocationLegacy).Create(&models.LessonDraft{ID: "a", OwnerID: "u1", Title: "A legacy"}).Error)
	require.NoError(t, db.Table(models.DraftLocationLegacy).Create(&models.LessonDraft{ID: "b", OwnerID: "u1", Title: "B"}).Error)
	require.NoError(t, repo.Create(ctx, &models.LessonDraft{ID: "c", OwnerID: "u2", Title: "C"}))

	drafts, err := repo.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	titles := map[string]string{}
	for _, d := range drafts {
		titles[d.ID] = d.Title
	}
	require.Equal(t, "A", titles["a"])
	require.Equal(t, "B", titles["b"])
}

func TestSpaceRepositoryCodeInUseChecksLegacyColumns(t *testing.T) {
	db := setupTestDB(t, &models.Space{})
	repo := NewSpaceRepository(db)
	ctx := context.Background()

	legacyCode := "ABC234"
	require.NoError(t, repo.Create(ctx, &models.Space{ID: "s1", OwnerID: "t1", Title: "Old", LegacyJoinCode: &legacyCode}))
	require.NoError(t, repo.Create(ctx, &models.Space{ID: "s2", OwnerID: "t1", Title: "New", Code: "XYZ789"}))

	inUse, err := repo.CodeInUse(ctx, "ABC234")
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = repo.CodeInUse(ctx, "XYZ789")
	require.NoError(t, err)
	require.True(t, inUse)

	inUse, err = repo.CodeInUse(ctx, "KKK222")
	require.NoError(t, err)
	require.False(t, inUse)

	_, err = repo.FindByCodeColumn(ctx, "title", "Old")
	require.Error(t, err)
}

func TestLibrarySubmissionRepositoryQueryFilters(t *testing.T) {
	db := setupTestDB(t, &models.LibrarySubmission{})
	repo := NewLibrarySubmissionRepository(db)
	ctx := context.Background()

	correct := true
	wrong := false
	rows := []models.LibrarySubmission{
		{ID: "1", LessonID: "l1", TaskType: "gap", IsCorrect: &correct, Status: models.SubmissionStatusNew},
		{ID: "2", LessonID: "l1", TaskType: "gap", IsCorrect: &wrong, Status: models.SubmissionStatusNew},
		{ID: "3", LessonID: "l1", TaskType: "quiz", IsCorrect: &correct, Status: models.SubmissionStatusNew},
		{ID: "4", LessonID: "l2", TaskType: "gap", Status: models.SubmissionStatusNew},
	}
	for i := range rows {
		require.NoError(t, repo.Create(ctx, &rows[i]))
	}

	results, err := repo.Query(ctx, LibrarySubmissionQuery{LessonID: "l1", TaskType: "gap", IsCorrect: &correct})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1", results[0].ID)

	limited, err := repo.Query(ctx, LibrarySubmissionQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestAuditRepositoryListPaginates(t *testing.T) {
	db := setupTestDB(t, &models.AuditEvent{})
	repo := NewAuditRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.AuditEvent{
			ActorID:    "admin",
			ActorRole:  "admin",
			Action:     "lesson.publish",
			EntityType: "lesson",
			EntityID:   fmt.Sprintf("l%d", i),
			Outcome:    models.AuditOutcomeSucceeded,
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.AuditEvent{
		ActorID: "u1", ActorRole: "student", Action: "lesson.publish", EntityType: "lesson", EntityID: "l9", Outcome: models.AuditOutcomeBlocked,
	}))

	entries, total, err := repo.List(ctx, AuditFilter{Outcome: models.AuditOutcomeSucceeded, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, entries, 1)
}
