package dto

import "time"

// GradeUpdateRequest carries grader-supplied earned points keyed by question
// id. Null values leave a component ungraded; Complete marks the grade done.
type GradeUpdateRequest struct {
	EarnedDetails map[string]*int   `json:"earned_details" validate:"required,min=1"`
	Feedback      map[string]string `json:"feedback"`
	Complete      bool              `json:"complete"`
}

// AppealCreateRequest opens a grade dispute on one question.
type AppealCreateRequest struct {
	Explanation string `json:"explanation" validate:"required,min=10"`
}

// GradingView is the grader-facing state of one attempt, solutions included.
type GradingView struct {
	Item       ItemResponse                `json:"item"`
	Attempt    AttemptResponse             `json:"attempt"`
	LearnerID  string                      `json:"learner_id"`
	Questions  []QuestionResponse          `json:"questions"`
	Solutions  map[string]SolutionResponse `json:"solutions"`
	Submission *SubmissionResponse         `json:"submission,omitempty"`
	Grade      *GradeResponse              `json:"grade,omitempty"`
	Appeals    map[string]AppealResponse   `json:"appeals,omitempty"`
}

// CertificateRequestResponse acknowledges a certificate issuance request.
type CertificateRequestResponse struct {
	CertificateID string    `json:"certificate_id"`
	RequestedAt   time.Time `json:"requested_at"`
	Status        string    `json:"status"`
}
