package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attempt is one learner's try at one item within one context. The partial
// unique index guarantees at most one active attempt per key; conflicting
// inserts surface as duplicate-key errors rather than pre-check races.
type Attempt struct {
	ID          uint                      `gorm:"primaryKey" json:"id"`
	ItemID      string                    `gorm:"size:36;not null;index:idx_attempts_active_key,unique,where:active" json:"item_id"`
	LearnerID   string                    `gorm:"size:36;not null;index:idx_attempts_active_key,unique,where:active" json:"learner_id"`
	Context     string                    `gorm:"size:255;not null;default:'';index:idx_attempts_active_key,unique,where:active" json:"context"`
	QuestionIDs datatypes.JSONSlice[uint] `json:"question_ids"`
	StartedAt   time.Time                 `gorm:"not null" json:"started_at"`
	Active      bool                      `gorm:"not null;default:true;index" json:"active"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`

	Item       *Item       `json:"-"`
	Submission *Submission `json:"-"`
	Grade      *Grade      `json:"-"`
	ScratchPad *ScratchPad `json:"-"`
}

// Deadline returns the hard submission cutoff, or zero time for open-ended
// items.
func (a Attempt) Deadline(item Item) time.Time {
	if item.DurationSeconds <= 0 {
		return time.Time{}
	}
	return a.StartedAt.Add(item.Duration())
}

// ScratchPad keeps partial answers saved while sitting. It is distinct from
// the Submission so progress survives reconnects without finalizing.
type ScratchPad struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AttemptID uint              `gorm:"not null;uniqueIndex" json:"attempt_id"`
	Answers   datatypes.JSONMap `json:"answers"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Submission is created exactly once per attempt and never mutated. Text is
// the searchable plain text derived from the answer payload.
type Submission struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	AttemptID uint              `gorm:"not null;uniqueIndex" json:"attempt_id"`
	Answers   datatypes.JSONMap `json:"answers"`
	Text      string            `gorm:"type:text" json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SubmissionAttachment records a declared attachment on an assignment
// submission. Storage itself lives with an external collaborator; only the
// validated metadata is kept here.
type SubmissionAttachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	FileName     string    `gorm:"size:255;not null" json:"file_name"`
	MimeType     string    `gorm:"size:100;not null" json:"mime_type"`
	SizeBytes    int64     `gorm:"not null" json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}
