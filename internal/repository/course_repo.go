package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// CourseRepository defines persistence operations for courses and their
// schedule bindings.
type CourseRepository interface {
	GetByID(ctx context.Context, id string) (models.Course, error)
	GetWithLessons(ctx context.Context, id string) (models.Course, error)
	GetPolicy(ctx context.Context, courseID string) (models.GradingPolicy, error)
	ListAssessments(ctx context.Context, courseID string) ([]models.Assessment, error)
	GetAssessment(ctx context.Context, courseID, itemID string) (models.Assessment, error)
	GetLessonByMedia(ctx context.Context, courseID, mediaID string) (models.Lesson, error)
	Create(ctx context.Context, course *models.Course) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetWithLessons(ctx context.Context, id string) (models.Course, error) {
	var course models.Course
	err := r.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("ordering ASC, id ASC")
		}).
		Preload("Lessons.Medias").
		First(&course, "id = ?", id).Error
	if err != nil {
		return models.Course{}, err
	}

	return course, nil
}

func (r *courseRepository) GetPolicy(ctx context.Context, courseID string) (models.GradingPolicy, error) {
	var policy models.GradingPolicy
	if err := r.db.WithContext(ctx).First(&policy, "course_id = ?", courseID).Error; err != nil {
		return models.GradingPolicy{}, err
	}

	return policy, nil
}

func (r *courseRepository) ListAssessments(ctx context.Context, courseID string) ([]models.Assessment, error) {
	var assessments []models.Assessment
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("course_id = ?", courseID).
		Order("start_offset ASC, id ASC").
		Find(&assessments).Error
	if err != nil {
		return nil, err
	}

	return assessments, nil
}

func (r *courseRepository) GetAssessment(ctx context.Context, courseID, itemID string) (models.Assessment, error) {
	var assessment models.Assessment
	err := r.db.WithContext(ctx).
		Where("course_id = ? AND item_id = ?", courseID, itemID).
		First(&assessment).Error
	if err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *courseRepository) GetLessonByMedia(ctx context.Context, courseID, mediaID string) (models.Lesson, error) {
	var lesson models.Lesson
	err := r.db.WithContext(ctx).
		Joins("JOIN lesson_medias ON lesson_medias.lesson_id = lessons.id").
		Where("lessons.course_id = ? AND lesson_medias.media_id = ?", courseID, mediaID).
		First(&lesson).Error
	if err != nil {
		return models.Lesson{}, err
	}

	return lesson, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}
