package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// PublishedLessonFilter narrows the student-facing listing.
type PublishedLessonFilter struct {
	Language   string
	Level      string
	Visibility string
	Limit      int
}

// PublishedLessonRepository persists published lesson snapshots.
type PublishedLessonRepository interface {
	Get(ctx context.Context, id string) (models.PublishedLesson, error)
	Save(ctx context.Context, lesson *models.PublishedLesson) error
	ListActive(ctx context.Context, filter PublishedLessonFilter) ([]models.PublishedLesson, error)
}

type publishedLessonRepository struct {
	db *gorm.DB
}

// NewPublishedLessonRepository constructs the repository.
func NewPublishedLessonRepository(db *gorm.DB) PublishedLessonRepository {
	return &publishedLessonRepository{db: db}
}

func (r *publishedLessonRepository) Get(ctx context.Context, id string) (models.PublishedLesson, error) {
	var lesson models.PublishedLesson
	if err := r.db.WithContext(ctx).First(&lesson, "id = ?", id).Error; err != nil {
		return models.PublishedLesson{}, err
	}
	return lesson, nil
}

func (r *publishedLessonRepository) Save(ctx context.Context, lesson *models.PublishedLesson) error {
	return r.db.WithContext(ctx).Save(lesson).Error
}

func (r *publishedLessonRepository) ListActive(ctx context.Context, filter PublishedLessonFilter) ([]models.PublishedLesson, error) {
	query := r.db.WithContext(ctx).Model(&models.PublishedLesson{}).Where("is_active = ?", true)

	if filter.Visibility != "" {
		query = query.Where("visibility = ?", filter.Visibility)
	}
	if filter.Language != "" {
		query = query.Where("language = ?", filter.Language)
	}
	if filter.Level != "" {
		query = query.Where("level = ?", filter.Level)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var lessons []models.PublishedLesson
	if err := query.Order("published_at DESC").Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}
