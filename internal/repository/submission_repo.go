package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// SubmissionFilter narrows space submission queries.
type SubmissionFilter struct {
	SpaceID  string
	LessonID string
	Status   string
}

// SubmissionRepository defines data operations for space submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.SpaceSubmission, error)
	GetByID(ctx context.Context, id string) (models.SpaceSubmission, error)
	Create(ctx context.Context, submission *models.SpaceSubmission) error
	Update(ctx context.Context, submission *models.SpaceSubmission) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.SpaceSubmission, error) {
	query := r.db.WithContext(ctx).Model(&models.SpaceSubmission{})

	if filter.SpaceID != "" {
		query = query.Where("space_id = ?", filter.SpaceID)
	}

	if filter.LessonID != "" {
		query = query.Where("lesson_id = ?", filter.LessonID)
	}

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var submissions []models.SpaceSubmission
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (models.SpaceSubmission, error) {
	var submission models.SpaceSubmission
	if err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error; err != nil {
		return models.SpaceSubmission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.SpaceSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.SpaceSubmission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}
