package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using
// the provided DSN. Driver errors are translated so uniqueness violations
// surface as gorm.ErrDuplicatedKey, which the lifecycle invariants rely on.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.QuestionPool{},
		&models.Question{},
		&models.Solution{},
		&models.Item{},
		&models.Attempt{},
		&models.ScratchPad{},
		&models.Submission{},
		&models.SubmissionAttachment{},
		&models.Grade{},
		&models.Appeal{},
		&models.Enrollment{},
		&models.PublicAccess{},
		&models.VerificationLog{},
		&models.Course{},
		&models.Lesson{},
		&models.Media{},
		&models.Watch{},
		&models.Assessment{},
		&models.GradingPolicy{},
		&models.Engagement{},
		&models.Gradebook{},
	)
}
