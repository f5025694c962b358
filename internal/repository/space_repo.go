package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
)

// SpaceRepository persists spaces.
type SpaceRepository interface {
	Create(ctx context.Context, space *models.Space) error
	Save(ctx context.Context, space *models.Space) error
	GetByID(ctx context.Context, id string) (models.Space, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Space, error)
	// CodeInUse checks every code column, current and legacy.
	CodeInUse(ctx context.Context, code string) (bool, error)
	FindByCodeColumn(ctx context.Context, column, code string) (models.Space, error)
}

type spaceRepository struct {
	db *gorm.DB
}

// NewSpaceRepository constructs the space repository.
func NewSpaceRepository(db *gorm.DB) SpaceRepository {
	return &spaceRepository{db: db}
}

func (r *spaceRepository) Create(ctx context.Context, space *models.Space) error {
	return r.db.WithContext(ctx).Create(space).Error
}

func (r *spaceRepository) Save(ctx context.Context, space *models.Space) error {
	return r.db.WithContext(ctx).Save(space).Error
}

func (r *spaceRepository) GetByID(ctx context.Context, id string) (models.Space, error) {
	var space models.Space
	if err := r.db.WithContext(ctx).First(&space, "id = ?", id).Error; err != nil {
		return models.Space{}, err
	}
	return space, nil
}

func (r *spaceRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Space, error) {
	var spaces []models.Space
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&spaces).Error; err != nil {
		return nil, err
	}
	return spaces, nil
}

func (r *spaceRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	for _, column := range models.SpaceCodeColumns {
		_, err := r.FindByCodeColumn(ctx, column, code)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}
	}
	return false, nil
}

func (r *spaceRepository) FindByCodeColumn(ctx context.Context, column, code string) (models.Space, error) {
	if !knownCodeColumn(column) {
		return models.Space{}, fmt.Errorf("unknown space code column %q", column)
	}

	var space models.Space
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", code).
		Order("created_at DESC").
		First(&space).Error; err != nil {
		return models.Space{}, err
	}
	return space, nil
}

func knownCodeColumn(column string) bool {
	for _, known := range models.SpaceCodeColumns {
		if known == column {
			return true
		}
	}
	return false
}
