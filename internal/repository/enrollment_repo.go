package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// EnrollmentRepository resolves the active enrollment for a user/content
// pair. The partial unique index keeps it 0-or-1.
type EnrollmentRepository interface {
	GetActive(ctx context.Context, userID, contentID string) (models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Deactivate(ctx context.Context, id uint, userID string) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository instantiates a GORM-backed repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) GetActive(ctx context.Context, userID, contentID string) (models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_id = ? AND active", userID, contentID).
		First(&enrollment).Error
	if err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(enrollment).Error
}

func (r *enrollmentRepository) Deactivate(ctx context.Context, id uint, userID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND user_id = ? AND active", id, userID).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PublicAccessRepository resolves the public window currently open on a
// media, if any.
type PublicAccessRepository interface {
	GetCurrent(ctx context.Context, mediaID string, now time.Time) (models.PublicAccess, error)
}

type publicAccessRepository struct {
	db *gorm.DB
}

// NewPublicAccessRepository instantiates a GORM-backed repository.
func NewPublicAccessRepository(db *gorm.DB) PublicAccessRepository {
	return &publicAccessRepository{db: db}
}

func (r *publicAccessRepository) GetCurrent(ctx context.Context, mediaID string, now time.Time) (models.PublicAccess, error) {
	var access models.PublicAccess
	err := r.db.WithContext(ctx).
		Where("media_id = ? AND start <= ? AND archive >= ?", mediaID, now, now).
		First(&access).Error
	if err != nil {
		return models.PublicAccess{}, err
	}

	return access, nil
}
