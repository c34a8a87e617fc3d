package service

import "net/http"

// DomainError is a categorical, caller-recoverable failure carrying a stable
// machine-readable code. Handlers map it 1:1 onto a 4xx response; anything
// else is treated as an internal error.
type DomainError struct {
	Code    string
	Status  int
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Access and authorization failures.
var (
	ErrAccessDenied         = &DomainError{Code: "ACCESS_DENIED", Status: http.StatusForbidden, Message: "access denied"}
	ErrContentNotAvailable  = &DomainError{Code: "CONTENT_NOT_AVAILABLE", Status: http.StatusForbidden, Message: "content is not available yet"}
	ErrContentReadOnly      = &DomainError{Code: "CONTENT_READ_ONLY", Status: http.StatusForbidden, Message: "content is read-only during the review period"}
	ErrReviewPeriodOver     = &DomainError{Code: "REVIEW_PERIOD_OVER", Status: http.StatusForbidden, Message: "review period is over"}
	ErrVerificationRequired = &DomainError{Code: "OTP_VERIFICATION_REQUIRED", Status: http.StatusForbidden, Message: "verification is required before starting"}
)

// Lifecycle conflicts, surfaced from storage uniqueness.
var (
	ErrAttemptAlreadyStarted   = &DomainError{Code: "ATTEMPT_ALREADY_STARTED", Status: http.StatusConflict, Message: "an active attempt already exists"}
	ErrAttemptAlreadySubmitted = &DomainError{Code: "ATTEMPT_ALREADY_SUBMITTED", Status: http.StatusConflict, Message: "the attempt was already submitted"}
	ErrMaxAttemptsReached      = &DomainError{Code: "MAX_ATTEMPTS_REACHED", Status: http.StatusConflict, Message: "maximum attempts reached"}
	ErrAttemptExpired          = &DomainError{Code: "ATTEMPT_HAS_EXPIRED", Status: http.StatusConflict, Message: "the attempt deadline has passed"}
	ErrAlreadyExists           = &DomainError{Code: "ALREADY_EXISTS", Status: http.StatusConflict, Message: "the resource already exists"}
)

// Validation failures.
var (
	ErrNoAnswers          = &DomainError{Code: "NO_ANSWERS", Status: http.StatusUnprocessableEntity, Message: "no answers were provided"}
	ErrEmptyAnswer        = &DomainError{Code: "EMPTY_ANSWER", Status: http.StatusUnprocessableEntity, Message: "the answer is empty"}
	ErrAttachmentTooFew   = &DomainError{Code: "ATTACHMENT_TOO_FEW", Status: http.StatusUnprocessableEntity, Message: "too few attachments"}
	ErrAttachmentTooMany  = &DomainError{Code: "ATTACHMENT_TOO_MANY", Status: http.StatusUnprocessableEntity, Message: "too many attachments"}
	ErrAttachmentTooLarge = &DomainError{Code: "ATTACHMENT_TOO_LARGE", Status: http.StatusUnprocessableEntity, Message: "attachment exceeds the size limit"}
	ErrAttachmentBadType  = &DomainError{Code: "ATTACHMENT_BAD_TYPE", Status: http.StatusUnprocessableEntity, Message: "attachment type is not allowed"}
	ErrAnswerTooShort     = &DomainError{Code: "ANSWER_TOO_SHORT", Status: http.StatusUnprocessableEntity, Message: "the answer is below the minimum length"}
	ErrNoQuestion         = &DomainError{Code: "NO_QUESTION", Status: http.StatusUnprocessableEntity, Message: "no question is available"}
)

// Misc domain failures.
var (
	ErrNotFound                   = &DomainError{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: "resource not found"}
	ErrGradeNotCompleted          = &DomainError{Code: "GRADE_NOT_COMPLETED", Status: http.StatusConflict, Message: "grade must be completed before confirmation"}
	ErrNotQualifiedForCertificate = &DomainError{Code: "NOT_QUALIFIED_FOR_CERTIFICATE", Status: http.StatusConflict, Message: "gradebook is not confirmed as passed"}
)
