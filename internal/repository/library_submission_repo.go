package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// LibrarySubmissionQuery filters the admin read surface.
type LibrarySubmissionQuery struct {
	LessonID  string
	TaskType  string
	IsCorrect *bool
	Limit     int
}

// LibrarySubmissionRepository persists student-library submissions.
type LibrarySubmissionRepository interface {
	Create(ctx context.Context, submission *models.LibrarySubmission) error
	GetByID(ctx context.Context, id string) (models.LibrarySubmission, error)
	Update(ctx context.Context, submission *models.LibrarySubmission) error
	Query(ctx context.Context, query LibrarySubmissionQuery) ([]models.LibrarySubmission, error)
}

type librarySubmissionRepository struct {
	db *gorm.DB
}

// NewLibrarySubmissionRepository constructs the repository.
func NewLibrarySubmissionRepository(db *gorm.DB) LibrarySubmissionRepository {
	return &librarySubmissionRepository{db: db}
}

func (r *librarySubmissionRepository) Create(ctx context.Context, submission *models.LibrarySubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *librarySubmissionRepository) GetByID(ctx context.Context, id string) (models.LibrarySubmission, error) {
	var submission models.LibrarySubmission
	if err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error; err != nil {
		return models.LibrarySubmission{}, err
	}
	return submission, nil
}

func (r *librarySubmissionRepository) Update(ctx context.Context, submission *models.LibrarySubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *librarySubmissionRepository) Query(ctx context.Context, query LibrarySubmissionQuery) ([]models.LibrarySubmission, error) {
	db := r.db.WithContext(ctx).Model(&models.LibrarySubmission{})

	if query.LessonID != "" {
		db = db.Where("lesson_id = ?", query.LessonID)
	}
	if query.TaskType != "" {
		db = db.Where("task_type = ?", query.TaskType)
	}
	if query.IsCorrect != nil {
		db = db.Where("is_correct = ?", *query.IsCorrect)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var submissions []models.LibrarySubmission
	if err := db.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
