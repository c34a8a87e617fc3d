package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

// ScoreBucket is one slot of the score distribution histogram.
type ScoreBucket struct {
	Bucket int   `json:"bucket"`
	Count  int64 `json:"count"`
}

// ScoreStats summarises grades across all attempts at one item.
type ScoreStats struct {
	Total        int64         `json:"total"`
	AvgScore     float64       `json:"avg_score"`
	MinScore     float64       `json:"min_score"`
	MaxScore     float64       `json:"max_score"`
	MaxCount     int64         `json:"max_count"`
	Distribution []ScoreBucket `json:"distribution"`
}

const scoreBucketSize = 5

// GradeRepository defines persistence operations for grades.
type GradeRepository interface {
	Save(ctx context.Context, grade *models.Grade) error
	GetByAttempt(ctx context.Context, attemptID uint) (models.Grade, error)
	GetConfirmedByKey(ctx context.Context, itemID, learnerID, context string) (models.Grade, error)
	Stats(ctx context.Context, itemID string) (ScoreStats, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates a GORM-backed repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) Save(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func (r *gradeRepository) GetByAttempt(ctx context.Context, attemptID uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).First(&grade, "attempt_id = ?", attemptID).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) GetConfirmedByKey(ctx context.Context, itemID, learnerID, context string) (models.Grade, error) {
	var grade models.Grade
	err := r.db.WithContext(ctx).
		Joins("JOIN attempts ON attempts.id = grades.attempt_id").
		Where("attempts.item_id = ? AND attempts.learner_id = ? AND attempts.context = ? AND attempts.active", itemID, learnerID, context).
		Where("grades.completed_at IS NOT NULL AND grades.confirmed_at IS NOT NULL").
		First(&grade).Error
	if err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) Stats(ctx context.Context, itemID string) (ScoreStats, error) {
	var stats ScoreStats

	row := r.db.WithContext(ctx).
		Model(&models.Grade{}).
		Select("COUNT(grades.id) AS total, COALESCE(AVG(grades.score), 0) AS avg_score, COALESCE(MIN(grades.score), 0) AS min_score, COALESCE(MAX(grades.score), 0) AS max_score").
		Joins("JOIN attempts ON attempts.id = grades.attempt_id").
		Where("attempts.item_id = ?", itemID).
		Row()
	if err := row.Scan(&stats.Total, &stats.AvgScore, &stats.MinScore, &stats.MaxScore); err != nil {
		return ScoreStats{}, err
	}

	rows, err := r.db.WithContext(ctx).
		Model(&models.Grade{}).
		Select("CAST(grades.score / ? AS INTEGER) * ? AS bucket, COUNT(*) AS count", scoreBucketSize, scoreBucketSize).
		Joins("JOIN attempts ON attempts.id = grades.attempt_id").
		Where("attempts.item_id = ?", itemID).
		Group("bucket").
		Order("bucket").
		Rows()
	if err != nil {
		return ScoreStats{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var bucket ScoreBucket
		if err := rows.Scan(&bucket.Bucket, &bucket.Count); err != nil {
			return ScoreStats{}, err
		}
		stats.Distribution = append(stats.Distribution, bucket)
		if bucket.Count > stats.MaxCount {
			stats.MaxCount = bucket.Count
		}
	}

	return stats, rows.Err()
}
