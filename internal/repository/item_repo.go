package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// ItemRepository defines persistence operations for assessable items.
type ItemRepository interface {
	GetByID(ctx context.Context, id string) (models.Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Item, error)
	Create(ctx context.Context, item *models.Item) error
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository instantiates a GORM-backed repository.
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).Preload("QuestionPool").First(&item, "id = ?", id).Error; err != nil {
		return models.Item{}, err
	}

	return item, nil
}

func (r *itemRepository) GetByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	var items []models.Item
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// QuestionRepository loads questions and their solutions.
type QuestionRepository interface {
	ListByPool(ctx context.Context, poolID uint) ([]models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error)
	GetByID(ctx context.Context, id uint) (models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates a GORM-backed repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByPool(ctx context.Context, poolID uint) ([]models.Question, error) {
	var questions []models.Question
	err := r.db.WithContext(ctx).
		Preload("Solution").
		Where("question_pool_id = ?", poolID).
		Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Question, error) {
	var questions []models.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Solution").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).Preload("Solution").First(&question, id).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}
