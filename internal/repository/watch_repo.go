package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// WatchRepository reads learner media progress used by the completion
// criterion.
type WatchRepository interface {
	ListPassedMediaIDs(ctx context.Context, userID, context string) ([]string, error)
	Upsert(ctx context.Context, watch *models.Watch) error
}

type watchRepository struct {
	db *gorm.DB
}

// NewWatchRepository instantiates a GORM-backed repository.
func NewWatchRepository(db *gorm.DB) WatchRepository {
	return &watchRepository{db: db}
}

func (r *watchRepository) ListPassedMediaIDs(ctx context.Context, userID, context string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Watch{}).
		Where("user_id = ? AND context = ? AND passed", userID, context).
		Pluck("media_id", &ids).Error
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *watchRepository) Upsert(ctx context.Context, watch *models.Watch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Watch
		err := tx.First(&existing, "user_id = ? AND media_id = ? AND context = ?",
			watch.UserID, watch.MediaID, watch.Context).Error
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			return tx.Create(watch).Error
		}

		watch.ID = existing.ID
		watch.CreatedAt = existing.CreatedAt
		return tx.Save(watch).Error
	})
}
