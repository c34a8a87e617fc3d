package dto

import (
	"time"

	"github.com/minima-lms/minima-api/internal/models"
)

// CourseResponse summarizes a course for session views.
type CourseResponse struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	EffortHours          int    `json:"effort_hours"`
	VerificationRequired bool   `json:"verification_required"`
}

// LessonView is a lesson with its schedule resolved against the learner's
// course access window.
type LessonView struct {
	ID       uint        `json:"id"`
	Title    string      `json:"title"`
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Medias   []MediaView `json:"medias"`
	Passed   bool        `json:"passed"`
	Ordering int         `json:"ordering"`
}

// MediaView is a media reference inside a lesson view.
type MediaView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	PassingPoint int    `json:"passing_point"`
	Passed       bool   `json:"passed"`
}

// AssessmentView is an item bound into the course schedule.
type AssessmentView struct {
	ItemID string    `json:"item_id"`
	Kind   string    `json:"kind"`
	Title  string    `json:"title"`
	Weight int       `json:"weight"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// EngagementResponse serializes a learner's course engagement. Context is
// normalized so engagement internals never leak to clients.
type EngagementResponse struct {
	ID        uint      `json:"id"`
	CourseID  string    `json:"course_id"`
	Context   string    `json:"context"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// GradebookResponse serializes the course-level verdict.
type GradebookResponse struct {
	Details        map[string]interface{} `json:"details"`
	Score          float64                `json:"score"`
	CompletionRate float64                `json:"completion_rate"`
	Passed         bool                   `json:"passed"`
	ConfirmedAt    *time.Time             `json:"confirmed_at"`
	Note           string                 `json:"note,omitempty"`
}

// CourseSessionView is the learner-facing course state.
type CourseSessionView struct {
	Course       CourseResponse      `json:"course"`
	AccessWindow models.AccessWindow `json:"access_window"`
	Lessons      []LessonView        `json:"lessons"`
	Assessments  []AssessmentView    `json:"assessments"`
	Engagement   *EngagementResponse `json:"engagement,omitempty"`
	Gradebook    *GradebookResponse  `json:"gradebook,omitempty"`
	OtpToken     string              `json:"otp_token,omitempty"`
}

// NewCourseResponse converts a Course model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	return CourseResponse{
		ID:                   model.ID,
		Title:                model.Title,
		Description:          model.Description,
		EffortHours:          model.EffortHours,
		VerificationRequired: model.VerificationRequired,
	}
}

// NewEngagementResponse converts an Engagement model into a DTO.
func NewEngagementResponse(model models.Engagement) EngagementResponse {
	return EngagementResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		Context:   models.NormalizeContext(model.Context()),
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
	}
}

// NewGradebookResponse converts a Gradebook model into a DTO.
func NewGradebookResponse(model models.Gradebook) GradebookResponse {
	return GradebookResponse{
		Details:        model.Details,
		Score:          model.Score,
		CompletionRate: model.CompletionRate,
		Passed:         model.Passed,
		ConfirmedAt:    model.ConfirmedAt,
		Note:           model.Note,
	}
}
