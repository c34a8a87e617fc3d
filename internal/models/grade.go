package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrGradeNotCompleted rejects confirming a grade before completion.
var ErrGradeNotCompleted = errors.New("cannot confirm a grade without completion")

// Grade is the 0-or-1 grading record per attempt. EarnedDetails maps a
// question id to the earned points, or null while a subjective component
// waits for a grader.
type Grade struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	AttemptID     uint              `gorm:"not null;uniqueIndex" json:"attempt_id"`
	EarnedDetails datatypes.JSONMap `json:"earned_details"`
	PossiblePoint int               `gorm:"not null" json:"possible_point"`
	EarnedPoint   int               `gorm:"not null" json:"earned_point"`
	Score         float64           `gorm:"not null" json:"score"`
	Passed        bool              `gorm:"not null;default:false" json:"passed"`
	Feedback      datatypes.JSONMap `json:"feedback"`
	CompletedAt   *time.Time        `json:"completed_at"`
	ConfirmedAt   *time.Time        `json:"confirmed_at"`
	GraderID      *string           `gorm:"size:36" json:"grader_id"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// BeforeSave enforces the confirmation ordering invariant at the storage
// boundary as well as in the service layer.
func (g *Grade) BeforeSave(tx *gorm.DB) error {
	if g.ConfirmedAt != nil && g.CompletedAt == nil {
		return ErrGradeNotCompleted
	}
	return nil
}

// Appeal is a learner-initiated grade dispute, unique per question and
// learner. ClosedAt is terminal.
type Appeal struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	QuestionID  uint       `gorm:"not null;uniqueIndex:idx_appeals_question_learner" json:"question_id"`
	LearnerID   string     `gorm:"size:36;not null;uniqueIndex:idx_appeals_question_learner" json:"learner_id"`
	Explanation string     `gorm:"type:text;not null" json:"explanation"`
	Review      string     `gorm:"type:text" json:"review"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
