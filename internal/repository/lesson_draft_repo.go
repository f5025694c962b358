package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// DraftLookup is one location a draft may live in.
type DraftLookup interface {
	Location() string
	Find(ctx context.Context, id string) (models.LessonDraft, error)
}

// LessonDraftRepository reads and writes drafts across the primary and legacy locations.
type LessonDraftRepository interface {
	Create(ctx context.Context, draft *models.LessonDraft) error
	// Locate walks the lookup strategies in order and returns the first hit with its location.
	Locate(ctx context.Context, id string) (models.LessonDraft, string, error)
	Save(ctx context.Context, location string, draft *models.LessonDraft) error
	UpdateFields(ctx context.Context, location, id string, fields map[string]interface{}) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.LessonDraft, error)
}

type tableDraftLookup struct {
	db    *gorm.DB
	table string
}

func (l tableDraftLookup) Location() string {
	return l.table
}

func (l tableDraftLookup) Find(ctx context.Context, id string) (models.LessonDraft, error) {
	var draft models.LessonDraft
	if err := l.db.WithContext(ctx).Table(l.table).Where("id = ?", id).First(&draft).Error; err != nil {
		return models.LessonDraft{}, err
	}
	return draft, nil
}

type lessonDraftRepository struct {
	db      *gorm.DB
	lookups []DraftLookup
}

// NewLessonDraftRepository constructs the draft repository with primary then legacy precedence.
func NewLessonDraftRepository(db *gorm.DB) LessonDraftRepository {
	return &lessonDraftRepository{
		db: db,
		lookups: []DraftLookup{
			tableDraftLookup{db: db, table: models.DraftLocationPrimary},
			tableDraftLookup{db: db, table: models.DraftLocationLegacy},
		},
	}
}

// NewLessonDraftRepositoryWithLookups allows an explicit strategy order.
func NewLessonDraftRepositoryWithLookups(db *gorm.DB, lookups ...DraftLookup) LessonDraftRepository {
	return &lessonDraftRepository{db: db, lookups: lookups}
}

// TableDraftLookup builds a lookup strategy for a table holding drafts.
func TableDraftLookup(db *gorm.DB, table string) DraftLookup {
	return tableDraftLookup{db: db, table: table}
}

// MigrateDraftLocations creates every draft location with the draft schema.
func MigrateDraftLocations(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.LessonDraft{}); err != nil {
		return err
	}
	return db.Table(models.DraftLocationLegacy).AutoMigrate(&models.LessonDraft{})
}

func (r *lessonDraftRepository) Create(ctx context.Context, draft *models.LessonDraft) error {
	return r.db.WithContext(ctx).Table(models.DraftLocationPrimary).Create(draft).Error
}

func (r *lessonDraftRepository) Locate(ctx context.Context, id string) (models.LessonDraft, string, error) {
	for _, lookup := range r.lookups {
		draft, err := lookup.Find(ctx, id)
		if err == nil {
			return draft, lookup.Location(), nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.LessonDraft{}, "", err
		}
	}
	return models.LessonDraft{}, "", gorm.ErrRecordNotFound
}

func (r *lessonDraftRepository) Save(ctx context.Context, location string, draft *models.LessonDraft) error {
	return r.db.WithContext(ctx).Table(r.table(location)).Save(draft).Error
}

func (r *lessonDraftRepository) UpdateFields(ctx context.Context, location, id string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Table(r.table(location)).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *lessonDraftRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.LessonDraft, error) {
	seen := make(map[string]struct{})
	drafts := make([]models.LessonDraft, 0)
	for _, lookup := range r.lookups {
		var batch []models.LessonDraft
		if err := r.db.WithContext(ctx).Table(lookup.Location()).
			Where("owner_id = ?", ownerID).
			Order("updated_at DESC").
			Find(&batch).Error; err != nil {
			return nil, err
		}
		for _, draft := range batch {
			if _, dup := seen[draft.ID]; dup {
				continue
			}
			seen[draft.ID] = struct{}{}
			drafts = append(drafts, draft)
		}
	}
	return drafts, nil
}

func (r *lessonDraftRepository) table(location string) string {
	if location == "" {
		return models.DraftLocationPrimary
	}
	return location
}
