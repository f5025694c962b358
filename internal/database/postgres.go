package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/skole-api/internal/models"
	"github.com/noah-isme/skole-api/internal/repository"
)

// ConnectPostgres opens the primary store and sizes its connection pool.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// Migrate creates or updates every table the API writes, including the legacy draft location.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserProfile{},
		&models.PublishedLesson{},
		&models.Space{},
		&models.SpaceSubmission{},
		&models.LibrarySubmission{},
		&models.AuditEvent{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := repository.MigrateDraftLocations(db); err != nil {
		return fmt.Errorf("failed to migrate draft locations: %w", err)
	}

	return nil
}
