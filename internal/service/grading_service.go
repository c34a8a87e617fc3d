package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/events"
	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/observability"
	"github.com/minima-lms/minima-api/internal/repository"
)

// GradingService computes and manages attempt grades. Objective components
// are graded automatically on every recompute; subjective components hold a
// null placeholder until a grader fills them in, and null components never
// count toward the earned sum.
type GradingService interface {
	GradePreliminary(ctx context.Context, attempt models.Attempt, item models.Item, questions []models.Question, submission models.Submission) (models.Grade, error)
	UpdateGrade(ctx context.Context, attemptID uint, payload dto.GradeUpdateRequest, graderID string) (models.Grade, error)
	ConfirmGrade(ctx context.Context, attemptID uint, graderID string) (models.Grade, error)
	GradingView(ctx context.Context, attemptID uint) (dto.GradingView, error)
}

type gradingService struct {
	attempts  repository.AttemptRepository
	questions repository.QuestionRepository
	grades    repository.GradeRepository
	appeals   repository.AppealRepository
	validator *validator.Validate
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	attempts repository.AttemptRepository,
	questions repository.QuestionRepository,
	grades repository.GradeRepository,
	appeals repository.AppealRepository,
	validator *validator.Validate,
	publisher events.Publisher,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		attempts:  attempts,
		questions: questions,
		grades:    grades,
		appeals:   appeals,
		validator: validator,
		publisher: publisher,
		logger:    logger.With().Str("component", "grading_service").Logger(),
		now:       time.Now,
	}
}

func (s *gradingService) GradePreliminary(ctx context.Context, attempt models.Attempt, item models.Item, questions []models.Question, submission models.Submission) (models.Grade, error) {
	if len(questions) == 0 {
		return models.Grade{}, ErrNoQuestion
	}

	grade := models.Grade{AttemptID: attempt.ID}
	if existing, err := s.grades.GetByAttempt(ctx, attempt.ID); err == nil {
		grade = existing
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Grade{}, err
	}

	s.compute(&grade, item, questions, submission.Answers)
	if err := s.grades.Save(ctx, &grade); err != nil {
		return models.Grade{}, err
	}

	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Int("earned", grade.EarnedPoint).
		Int("possible", grade.PossiblePoint).
		Msg("preliminary grade computed")
	return grade, nil
}

func (s *gradingService) UpdateGrade(ctx context.Context, attemptID uint, payload dto.GradeUpdateRequest, graderID string) (models.Grade, error) {
	tracer := otel.Tracer("github.com/minima-lms/minima-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(attribute.Int64("grading.attempt_id", int64(attemptID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return models.Grade{}, err
	}

	attempt, item, questions, submission, err := s.loadGradingContext(ctx, attemptID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_lookup_failed")
		return models.Grade{}, err
	}

	grade := models.Grade{AttemptID: attempt.ID}
	if existing, err := s.grades.GetByAttempt(ctx, attempt.ID); err == nil {
		grade = existing
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Grade{}, err
	}

	if grade.EarnedDetails == nil {
		grade.EarnedDetails = map[string]interface{}{}
	}
	for questionID, earned := range payload.EarnedDetails {
		if earned == nil {
			grade.EarnedDetails[questionID] = nil
			continue
		}
		grade.EarnedDetails[questionID] = *earned
	}
	if len(payload.Feedback) > 0 {
		if grade.Feedback == nil {
			grade.Feedback = map[string]interface{}{}
		}
		for questionID, note := range payload.Feedback {
			grade.Feedback[questionID] = note
		}
	}

	s.compute(&grade, item, questions, submission.Answers)
	grade.GraderID = &graderID
	if payload.Complete && grade.CompletedAt == nil {
		completedAt := s.now()
		grade.CompletedAt = &completedAt
	}

	if err := s.grades.Save(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_save_failed")
		return models.Grade{}, err
	}

	if payload.Complete {
		s.publisher.Publish(events.SubjectGradeCompleted, map[string]interface{}{
			"attempt_id": attempt.ID,
			"learner_id": attempt.LearnerID,
			"item_id":    attempt.ItemID,
			"score":      grade.Score,
			"passed":     grade.Passed,
		})
	}
	return grade, nil
}

func (s *gradingService) ConfirmGrade(ctx context.Context, attemptID uint, graderID string) (models.Grade, error) {
	tracer := otel.Tracer("github.com/minima-lms/minima-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.confirm")
	span.SetAttributes(attribute.Int64("grading.attempt_id", int64(attemptID)))
	defer span.End()

	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Grade{}, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt_lookup_failed")
		return models.Grade{}, err
	}
	if attempt.Grade == nil {
		return models.Grade{}, ErrNotFound
	}
	grade := *attempt.Grade

	if grade.CompletedAt == nil {
		return models.Grade{}, ErrGradeNotCompleted
	}
	if grade.ConfirmedAt != nil {
		return grade, nil
	}

	confirmedAt := s.now()
	grade.ConfirmedAt = &confirmedAt
	grade.GraderID = &graderID
	if err := s.grades.Save(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_save_failed")
		return models.Grade{}, err
	}

	kind := ""
	if attempt.Item != nil {
		kind = attempt.Item.Kind
	}
	observability.GradesConfirmed().WithLabelValues(kind).Inc()
	s.publisher.Publish(events.SubjectGradeConfirmed, map[string]interface{}{
		"attempt_id": attemptID,
		"score":      grade.Score,
		"passed":     grade.Passed,
	})
	return grade, nil
}

func (s *gradingService) GradingView(ctx context.Context, attemptID uint) (dto.GradingView, error) {
	attempt, item, questions, submission, err := s.loadGradingContext(ctx, attemptID)
	if err != nil {
		return dto.GradingView{}, err
	}

	view := dto.GradingView{
		Item:      dto.NewItemResponse(item),
		Attempt:   dto.NewAttemptResponse(attempt, item),
		LearnerID: attempt.LearnerID,
		Solutions: map[string]dto.SolutionResponse{},
	}
	questionIDs := make([]uint, 0, len(questions))
	for _, question := range questions {
		view.Questions = append(view.Questions, dto.NewQuestionResponse(question))
		questionIDs = append(questionIDs, question.ID)
		if question.Solution != nil {
			view.Solutions[questionKey(question.ID)] = dto.NewSolutionResponse(*question.Solution)
		}
	}

	if submission.ID != 0 {
		response := dto.NewSubmissionResponse(submission, nil)
		view.Submission = &response
	}
	if attempt.Grade != nil {
		response := dto.NewGradeResponse(*attempt.Grade)
		view.Grade = &response
	}

	appeals, err := s.appeals.ListByQuestions(ctx, attempt.LearnerID, questionIDs)
	if err != nil {
		return dto.GradingView{}, err
	}
	if len(appeals) > 0 {
		view.Appeals = map[string]dto.AppealResponse{}
		for _, appeal := range appeals {
			view.Appeals[questionKey(appeal.QuestionID)] = dto.NewAppealResponse(appeal)
		}
	}
	return view, nil
}

func (s *gradingService) loadGradingContext(ctx context.Context, attemptID uint) (models.Attempt, models.Item, []models.Question, models.Submission, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attempt{}, models.Item{}, nil, models.Submission{}, ErrNotFound
		}
		return models.Attempt{}, models.Item{}, nil, models.Submission{}, err
	}
	if attempt.Item == nil {
		return models.Attempt{}, models.Item{}, nil, models.Submission{}, ErrNotFound
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return models.Attempt{}, models.Item{}, nil, models.Submission{}, err
	}

	var submission models.Submission
	if attempt.Submission != nil {
		submission = *attempt.Submission
	}
	return attempt, *attempt.Item, questions, submission, nil
}

// compute regrades every component in place. Objective questions are always
// overwritten from the submitted answers; subjective ones keep whatever a
// grader entered, defaulting to null.
func (s *gradingService) compute(grade *models.Grade, item models.Item, questions []models.Question, answers map[string]interface{}) {
	if grade.EarnedDetails == nil {
		grade.EarnedDetails = map[string]interface{}{}
	}

	possible := 0
	for _, question := range questions {
		key := questionKey(question.ID)
		possible += question.Point

		if question.Solution != nil && question.Solution.IsObjective() {
			earned := 0
			if answer, ok := stringAnswer(answers, key); ok && answerMatches(question.Solution.CorrectAnswers, answer) {
				earned = question.Point
			}
			grade.EarnedDetails[key] = earned
			continue
		}
		if _, ok := grade.EarnedDetails[key]; !ok {
			grade.EarnedDetails[key] = nil
		}
	}

	earned := 0
	for _, value := range grade.EarnedDetails {
		if points, ok := numericValue(value); ok {
			earned += points
		}
	}

	grade.PossiblePoint = possible
	grade.EarnedPoint = earned
	// The score stays an unrounded quotient so a pass threshold is never
	// crossed by rounding alone.
	grade.Score = 0
	if possible > 0 {
		grade.Score = float64(earned) / float64(possible) * 100
	}
	grade.Passed = grade.Score >= float64(item.PassingPoint)
}

// answerMatches compares exactly first, then numerically so "0.50" still
// matches "0.5" on number inputs.
func answerMatches(correct []string, answer string) bool {
	trimmed := strings.TrimSpace(answer)
	for _, candidate := range correct {
		if trimmed == strings.TrimSpace(candidate) {
			return true
		}
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return false
	}
	for _, candidate := range correct {
		if expected, err := strconv.ParseFloat(strings.TrimSpace(candidate), 64); err == nil && expected == value {
			return true
		}
	}
	return false
}

func questionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func stringAnswer(answers map[string]interface{}, key string) (string, bool) {
	value, ok := answers[key]
	if !ok || value == nil {
		return "", false
	}
	answer, ok := value.(string)
	return answer, ok
}

// numericValue normalizes earned-detail entries, which arrive as int before
// the JSON round-trip and float64 after it.
func numericValue(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// roundTenth rounds half-up to one decimal place.
func roundTenth(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}
