package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	Save(ctx context.Context, profile *models.UserProfile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository constructs the profile repository.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, uid string) (models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "uid = ?", uid).Error; err != nil {
		return models.UserProfile{}, err
	}
	return profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

func (r *profileRepository) Save(ctx context.Context, profile *models.UserProfile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}
