package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// VerificationRepository reads and records proof-of-verification checks.
type VerificationRepository interface {
	HasFreshSuccess(ctx context.Context, userID, consumerID string, since time.Time) (bool, error)
	Create(ctx context.Context, log *models.VerificationLog) error
}

type verificationRepository struct {
	db *gorm.DB
}

// NewVerificationRepository instantiates a GORM-backed repository.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) HasFreshSuccess(ctx context.Context, userID, consumerID string, since time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.VerificationLog{}).
		Where("user_id = ? AND consumer_id = ? AND success AND created_at >= ?", userID, consumerID, since).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (r *verificationRepository) Create(ctx context.Context, log *models.VerificationLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}
