package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Item kinds. Every assessable item shares one lifecycle; the kind only
// selects content-composition and submission-validation behaviour.
const (
	ItemKindExam       = "exam"
	ItemKindAssignment = "assignment"
	ItemKindDiscussion = "discussion"
)

// Question formats.
const (
	QuestionFormatSingleChoice = "single_choice"
	QuestionFormatTextInput    = "text_input"
	QuestionFormatNumberInput  = "number_input"
	QuestionFormatEssay        = "essay"
)

// Item is an assessable learning object (exam, assignment or discussion
// question). MaxAttempts of zero means unlimited.
type Item struct {
	ID                   string         `gorm:"primaryKey;size:36" json:"id"`
	Kind                 string         `gorm:"size:20;not null;index" json:"kind"`
	Title                string         `gorm:"size:255;not null" json:"title"`
	Description          string         `gorm:"type:text" json:"description"`
	PassingPoint         int            `gorm:"not null;default:60" json:"passing_point"`
	MaxAttempts          int            `gorm:"not null;default:0" json:"max_attempts"`
	VerificationRequired bool           `gorm:"not null;default:false" json:"verification_required"`
	DurationSeconds      int            `gorm:"not null;default:0" json:"duration_seconds"`
	GradeDueDays         int            `gorm:"not null;default:0" json:"grade_due_days"`
	AppealDeadlineDays   int            `gorm:"not null;default:0" json:"appeal_deadline_days"`
	ConfirmDueDays       int            `gorm:"not null;default:0" json:"confirm_due_days"`
	QuestionPoolID       uint           `gorm:"not null" json:"question_pool_id"`
	QuestionPool         *QuestionPool  `json:"-"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a UUID identifier when none was provided.
func (i *Item) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Duration returns the sitting time limit, zero for open-ended items.
func (i Item) Duration() time.Duration {
	return time.Duration(i.DurationSeconds) * time.Second
}

// GradingDates are the grader-facing deadlines derived from an access window.
type GradingDates struct {
	GradeDue       time.Time `json:"grade_due"`
	AppealDeadline time.Time `json:"appeal_deadline"`
	ConfirmDue     time.Time `json:"confirm_due"`
}

// GradingDates derives the grading workflow deadlines from the window end.
func (i Item) GradingDates(window AccessWindow) GradingDates {
	gradeDue := window.End.AddDate(0, 0, i.GradeDueDays)
	appealDeadline := gradeDue.AddDate(0, 0, i.AppealDeadlineDays)
	return GradingDates{
		GradeDue:       gradeDue,
		AppealDeadline: appealDeadline,
		ConfirmDue:     appealDeadline.AddDate(0, 0, i.ConfirmDueDays),
	}
}

// QuestionPool groups questions an item draws from. Composition maps a
// question format to the number of questions an exam sitting receives;
// assignment and discussion items draw a single random question instead.
type QuestionPool struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Composition datatypes.JSONMap `json:"composition"`
	Questions   []Question        `json:"-"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Question belongs to a pool. Attachment constraints only apply to
// assignment submissions; MinCharacters only to discussion answers.
type Question struct {
	ID                  uint                         `gorm:"primaryKey" json:"id"`
	QuestionPoolID      uint                         `gorm:"not null;index" json:"question_pool_id"`
	Format              string                       `gorm:"size:20;not null" json:"format"`
	Prompt              string                       `gorm:"type:text;not null" json:"prompt"`
	Supplement          string                       `gorm:"type:text" json:"supplement"`
	Options             datatypes.JSONSlice[string]  `json:"options"`
	Point               int                          `gorm:"not null;default:1" json:"point"`
	AttachmentFileCount int                          `gorm:"not null;default:0" json:"attachment_file_count"`
	AttachmentMaxSizeMB int                          `gorm:"not null;default:100" json:"attachment_max_size_mb"`
	AttachmentFileTypes datatypes.JSONSlice[string]  `json:"attachment_file_types"`
	MinCharacters       int                          `gorm:"not null;default:0" json:"min_characters"`
	Solution            *Solution                    `json:"-"`
}

// Solution holds the grading key for a question. Questions without correct
// answers are subjective and wait for a human grader.
type Solution struct {
	ID             uint                        `gorm:"primaryKey" json:"id"`
	QuestionID     uint                        `gorm:"not null;uniqueIndex" json:"question_id"`
	CorrectAnswers datatypes.JSONSlice[string] `json:"correct_answers"`
	Explanation    string                      `gorm:"type:text" json:"explanation"`
	Reference      datatypes.JSONSlice[string] `json:"reference"`
}

// IsObjective reports whether the solution can be graded automatically.
func (s Solution) IsObjective() bool {
	return len(s.CorrectAnswers) > 0
}
