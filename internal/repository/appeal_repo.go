package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// AppealRepository defines persistence operations for grade appeals. Create
// relies on the unique (question, learner) index for conflict detection.
type AppealRepository interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	ListByQuestions(ctx context.Context, learnerID string, questionIDs []uint) ([]models.Appeal, error)
}

type appealRepository struct {
	db *gorm.DB
}

// NewAppealRepository instantiates a GORM-backed repository.
func NewAppealRepository(db *gorm.DB) AppealRepository {
	return &appealRepository{db: db}
}

func (r *appealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	return r.db.WithContext(ctx).Create(appeal).Error
}

func (r *appealRepository) ListByQuestions(ctx context.Context, learnerID string, questionIDs []uint) ([]models.Appeal, error) {
	var appeals []models.Appeal
	if len(questionIDs) == 0 {
		return appeals, nil
	}
	err := r.db.WithContext(ctx).
		Where("learner_id = ? AND question_id IN ?", learnerID, questionIDs).
		Find(&appeals).Error
	if err != nil {
		return nil, err
	}

	return appeals, nil
}
