package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// AttemptRepository defines persistence operations for attempts. Create
// relies on the partial unique index to reject a second active attempt;
// callers translate gorm.ErrDuplicatedKey into the domain conflict.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (models.Attempt, error)
	GetActive(ctx context.Context, itemID, learnerID, context string) (models.Attempt, error)
	CountByKey(ctx context.Context, itemID, learnerID, context string) (int64, error)
	Update(ctx context.Context, attempt *models.Attempt) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates a GORM-backed repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).
		Preload("Item").
		Preload("Submission").
		Preload("Grade").
		First(&attempt, "id = ?", id).Error
	if err != nil {
		return models.Attempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) GetActive(ctx context.Context, itemID, learnerID, context string) (models.Attempt, error) {
	var attempt models.Attempt
	err := r.db.WithContext(ctx).
		Preload("Submission").
		Preload("Grade").
		Preload("ScratchPad").
		Where("item_id = ? AND learner_id = ? AND context = ? AND active", itemID, learnerID, context).
		First(&attempt).Error
	if err != nil {
		return models.Attempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) CountByKey(ctx context.Context, itemID, learnerID, context string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("item_id = ? AND learner_id = ? AND context = ?", itemID, learnerID, context).
		Count(&count).Error

	return count, err
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.Attempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

// SubmissionRepository creates and loads the one submission per attempt.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByAttempt(ctx context.Context, attemptID uint) (models.Submission, error)
	CreateAttachments(ctx context.Context, attachments []models.SubmissionAttachment) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates a GORM-backed repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByAttempt(ctx context.Context, attemptID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, "attempt_id = ?", attemptID).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) CreateAttachments(ctx context.Context, attachments []models.SubmissionAttachment) error {
	if len(attachments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&attachments).Error
}

// ScratchRepository merges partial answers into the per-attempt scratch pad.
type ScratchRepository interface {
	Merge(ctx context.Context, attemptID uint, answers map[string]interface{}) error
	GetByAttempt(ctx context.Context, attemptID uint) (models.ScratchPad, error)
}

type scratchRepository struct {
	db *gorm.DB
}

// NewScratchRepository instantiates a GORM-backed repository.
func NewScratchRepository(db *gorm.DB) ScratchRepository {
	return &scratchRepository{db: db}
}

func (r *scratchRepository) Merge(ctx context.Context, attemptID uint, answers map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pad models.ScratchPad
		err := tx.First(&pad, "attempt_id = ?", attemptID).Error
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			pad = models.ScratchPad{AttemptID: attemptID, Answers: answers}
			return tx.Create(&pad).Error
		}

		if pad.Answers == nil {
			pad.Answers = map[string]interface{}{}
		}
		for key, value := range answers {
			pad.Answers[key] = value
		}
		return tx.Model(&pad).Update("answers", pad.Answers).Error
	})
}

func (r *scratchRepository) GetByAttempt(ctx context.Context, attemptID uint) (models.ScratchPad, error) {
	var pad models.ScratchPad
	if err := r.db.WithContext(ctx).First(&pad, "attempt_id = ?", attemptID).Error; err != nil {
		return models.ScratchPad{}, err
	}

	return pad, nil
}
