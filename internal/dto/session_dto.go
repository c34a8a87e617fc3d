package dto

import (
	"time"

	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
)

// Session steps as presented to clients. The step is derived per request
// from the attempt, submission and grade records; it is never stored.
const (
	StepReady     = "ready"
	StepSitting   = "sitting"
	StepTimeout   = "timeout"
	StepGrading   = "grading"
	StepReviewing = "reviewing"
	StepFinal     = "final"
)

// SaveProgressRequest carries partial answers saved while sitting.
type SaveProgressRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

// SubmitRequest is the submission payload. Exams fill Answers; assignment
// and discussion items fill Answer (attachments arrive as multipart files).
type SubmitRequest struct {
	Answers map[string]string `json:"answers" form:"-"`
	Answer  string            `json:"answer" form:"answer"`
}

// ItemResponse summarizes an item for session views.
type ItemResponse struct {
	ID                   string `json:"id"`
	Kind                 string `json:"kind"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	PassingPoint         int    `json:"passing_point"`
	MaxAttempts          int    `json:"max_attempts"`
	DurationSeconds      int    `json:"duration_seconds"`
	VerificationRequired bool   `json:"verification_required"`
}

// QuestionResponse serializes a drawn question without its solution.
type QuestionResponse struct {
	ID                  uint     `json:"id"`
	Format              string   `json:"format"`
	Prompt              string   `json:"prompt"`
	Supplement          string   `json:"supplement,omitempty"`
	Options             []string `json:"options,omitempty"`
	Point               int      `json:"point"`
	AttachmentFileCount int      `json:"attachment_file_count,omitempty"`
	AttachmentMaxSizeMB int      `json:"attachment_max_size_mb,omitempty"`
	AttachmentFileTypes []string `json:"attachment_file_types,omitempty"`
	MinCharacters       int      `json:"min_characters,omitempty"`
}

// SolutionResponse exposes the grading key once the session reaches review.
type SolutionResponse struct {
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    string   `json:"explanation,omitempty"`
	Reference      []string `json:"reference,omitempty"`
}

// AttemptResponse serializes the learner's attempt.
type AttemptResponse struct {
	ID        uint       `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Active    bool       `json:"active"`
}

// AttachmentResponse echoes validated attachment metadata.
type AttachmentResponse struct {
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// SubmissionResponse serializes the finalized answers.
type SubmissionResponse struct {
	ID          uint                   `json:"id"`
	Answers     map[string]interface{} `json:"answers"`
	Text        string                 `json:"text,omitempty"`
	Attachments []AttachmentResponse   `json:"attachments,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// GradeResponse serializes a grading record.
type GradeResponse struct {
	EarnedDetails map[string]interface{} `json:"earned_details"`
	PossiblePoint int                    `json:"possible_point"`
	EarnedPoint   int                    `json:"earned_point"`
	Score         float64                `json:"score"`
	Passed        bool                   `json:"passed"`
	Feedback      map[string]interface{} `json:"feedback,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at"`
	ConfirmedAt   *time.Time             `json:"confirmed_at"`
}

// AppealResponse serializes a grade dispute.
type AppealResponse struct {
	ID          uint       `json:"id"`
	QuestionID  uint       `json:"question_id"`
	Explanation string     `json:"explanation"`
	Review      string     `json:"review,omitempty"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SessionView is the full learner-facing session state for one item. Fields
// beyond Step and Item are populated progressively as the session advances.
type SessionView struct {
	Step         string                      `json:"step"`
	AccessWindow models.AccessWindow         `json:"access_window"`
	GradingDates models.GradingDates         `json:"grading_dates"`
	Item         ItemResponse                `json:"item"`
	Attempt      *AttemptResponse            `json:"attempt,omitempty"`
	Questions    []QuestionResponse          `json:"questions,omitempty"`
	SavedAnswers map[string]interface{}      `json:"saved_answers,omitempty"`
	Submission   *SubmissionResponse         `json:"submission,omitempty"`
	Grade        *GradeResponse              `json:"grade,omitempty"`
	Solutions    map[string]SolutionResponse `json:"solutions,omitempty"`
	Appeals      map[string]AppealResponse   `json:"appeals,omitempty"`
	Stats        *repository.ScoreStats      `json:"stats,omitempty"`
	OtpToken     string                      `json:"otp_token,omitempty"`
}

// StartAttemptResponse is returned when a sitting begins.
type StartAttemptResponse struct {
	Attempt   AttemptResponse    `json:"attempt"`
	Questions []QuestionResponse `json:"questions"`
}

// NewItemResponse converts an Item model into a DTO.
func NewItemResponse(model models.Item) ItemResponse {
	return ItemResponse{
		ID:                   model.ID,
		Kind:                 model.Kind,
		Title:                model.Title,
		Description:          model.Description,
		PassingPoint:         model.PassingPoint,
		MaxAttempts:          model.MaxAttempts,
		DurationSeconds:      model.DurationSeconds,
		VerificationRequired: model.VerificationRequired,
	}
}

// NewQuestionResponse converts a Question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:                  model.ID,
		Format:              model.Format,
		Prompt:              model.Prompt,
		Supplement:          model.Supplement,
		Options:             model.Options,
		Point:               model.Point,
		AttachmentFileCount: model.AttachmentFileCount,
		AttachmentMaxSizeMB: model.AttachmentMaxSizeMB,
		AttachmentFileTypes: model.AttachmentFileTypes,
		MinCharacters:       model.MinCharacters,
	}
}

// NewSolutionResponse converts a Solution model into a DTO.
func NewSolutionResponse(model models.Solution) SolutionResponse {
	return SolutionResponse{
		CorrectAnswers: model.CorrectAnswers,
		Explanation:    model.Explanation,
		Reference:      model.Reference,
	}
}

// NewAttemptResponse converts an Attempt model into a DTO. The deadline is
// included only for time-boxed items.
func NewAttemptResponse(model models.Attempt, item models.Item) AttemptResponse {
	response := AttemptResponse{
		ID:        model.ID,
		StartedAt: model.StartedAt,
		Active:    model.Active,
	}
	if deadline := model.Deadline(item); !deadline.IsZero() {
		response.Deadline = &deadline
	}
	return response
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission, attachments []models.SubmissionAttachment) SubmissionResponse {
	response := SubmissionResponse{
		ID:        model.ID,
		Answers:   model.Answers,
		Text:      model.Text,
		CreatedAt: model.CreatedAt,
	}
	for _, attachment := range attachments {
		response.Attachments = append(response.Attachments, AttachmentResponse{
			FileName:  attachment.FileName,
			MimeType:  attachment.MimeType,
			SizeBytes: attachment.SizeBytes,
		})
	}
	return response
}

// NewGradeResponse converts a Grade model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		EarnedDetails: model.EarnedDetails,
		PossiblePoint: model.PossiblePoint,
		EarnedPoint:   model.EarnedPoint,
		Score:         model.Score,
		Passed:        model.Passed,
		Feedback:      model.Feedback,
		CompletedAt:   model.CompletedAt,
		ConfirmedAt:   model.ConfirmedAt,
	}
}

// NewAppealResponse converts an Appeal model into a DTO.
func NewAppealResponse(model models.Appeal) AppealResponse {
	return AppealResponse{
		ID:          model.ID,
		QuestionID:  model.QuestionID,
		Explanation: model.Explanation,
		Review:      model.Review,
		ClosedAt:    model.ClosedAt,
		CreatedAt:   model.CreatedAt,
	}
}
