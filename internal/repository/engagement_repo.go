package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// EngagementRepository defines persistence operations for course
// engagements. Create relies on the partial unique index for the one-active
// invariant.
type EngagementRepository interface {
	Create(ctx context.Context, engagement *models.Engagement) error
	GetActive(ctx context.Context, courseID, learnerID string) (models.Engagement, error)
	Update(ctx context.Context, engagement *models.Engagement) error
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository instantiates a GORM-backed repository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

func (r *engagementRepository) Create(ctx context.Context, engagement *models.Engagement) error {
	return r.db.WithContext(ctx).Create(engagement).Error
}

func (r *engagementRepository) GetActive(ctx context.Context, courseID, learnerID string) (models.Engagement, error) {
	var engagement models.Engagement
	err := r.db.WithContext(ctx).
		Preload("Gradebook").
		Where("course_id = ? AND learner_id = ? AND active", courseID, learnerID).
		First(&engagement).Error
	if err != nil {
		return models.Engagement{}, err
	}

	return engagement, nil
}

func (r *engagementRepository) Update(ctx context.Context, engagement *models.Engagement) error {
	return r.db.WithContext(ctx).Save(engagement).Error
}

// GradebookRepository upserts the one gradebook per engagement. Upsert never
// touches the confirmation timestamp; Confirm sets it exactly once.
type GradebookRepository interface {
	Upsert(ctx context.Context, gradebook *models.Gradebook) error
	Confirm(ctx context.Context, engagementID uint, confirmedAt time.Time, graderID string) error
	GetByEngagement(ctx context.Context, engagementID uint) (models.Gradebook, error)
}

type gradebookRepository struct {
	db *gorm.DB
}

// NewGradebookRepository instantiates a GORM-backed repository.
func NewGradebookRepository(db *gorm.DB) GradebookRepository {
	return &gradebookRepository{db: db}
}

func (r *gradebookRepository) Upsert(ctx context.Context, gradebook *models.Gradebook) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Gradebook
		err := tx.First(&existing, "engagement_id = ?", gradebook.EngagementID).Error
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			return tx.Create(gradebook).Error
		}

		gradebook.ID = existing.ID
		gradebook.ConfirmedAt = existing.ConfirmedAt
		gradebook.CreatedAt = existing.CreatedAt
		return tx.Save(gradebook).Error
	})
}

func (r *gradebookRepository) Confirm(ctx context.Context, engagementID uint, confirmedAt time.Time, graderID string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Gradebook{}).
		Where("engagement_id = ? AND confirmed_at IS NULL", engagementID).
		Updates(map[string]interface{}{"confirmed_at": confirmedAt, "grader_id": graderID})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gradebookRepository) GetByEngagement(ctx context.Context, engagementID uint) (models.Gradebook, error) {
	var gradebook models.Gradebook
	if err := r.db.WithContext(ctx).First(&gradebook, "engagement_id = ?", engagementID).Error; err != nil {
		return models.Gradebook{}, err
	}

	return gradebook, nil
}
