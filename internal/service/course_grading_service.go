package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/events"
	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/observability"
	"github.com/minima-lms/minima-api/internal/repository"
)

// CriterionCompletion is the key of the completion criterion in gradebook
// details and criteria lists.
const CriterionCompletion = "completion"

// GradingCriterion is one weighted component of a course verdict.
type GradingCriterion struct {
	Key              string  `json:"key"`
	Title            string  `json:"title"`
	Kind             string  `json:"kind"`
	Weight           int     `json:"weight"`
	PassingPoint     int     `json:"passing_point"`
	NormalizedWeight float64 `json:"normalized_weight"`
}

// CourseGradingService computes the course-level verdict from the confirmed
// item grades and the lesson completion rate, weighted per the course
// grading policy.
type CourseGradingService interface {
	BuildCriteria(ctx context.Context, courseID string) ([]GradingCriterion, error)
	GradeCourse(ctx context.Context, courseID, learnerID string, graderID *string) (models.Gradebook, error)
	ConfirmGradebook(ctx context.Context, courseID, learnerID, graderID string) (models.Gradebook, error)
}

type courseGradingService struct {
	courses     repository.CourseRepository
	engagements repository.EngagementRepository
	gradebooks  repository.GradebookRepository
	grades      repository.GradeRepository
	watches     repository.WatchRepository
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCourseGradingService constructs the course grading service.
func NewCourseGradingService(
	courses repository.CourseRepository,
	engagements repository.EngagementRepository,
	gradebooks repository.GradebookRepository,
	grades repository.GradeRepository,
	watches repository.WatchRepository,
	publisher events.Publisher,
	logger zerolog.Logger,
) CourseGradingService {
	return &courseGradingService{
		courses:     courses,
		engagements: engagements,
		gradebooks:  gradebooks,
		grades:      grades,
		watches:     watches,
		publisher:   publisher,
		logger:      logger.With().Str("component", "course_grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *courseGradingService) BuildCriteria(ctx context.Context, courseID string) ([]GradingCriterion, error) {
	policy, err := s.courses.GetPolicy(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	assessments, err := s.courses.ListAssessments(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var criteria []GradingCriterion
	if policy.CompletionWeight > 0 || policy.CompletionPassingPoint > 0 {
		criteria = append(criteria, GradingCriterion{
			Key:          CriterionCompletion,
			Title:        "Completion",
			Kind:         CriterionCompletion,
			Weight:       policy.CompletionWeight,
			PassingPoint: policy.CompletionPassingPoint,
		})
	}
	for _, assessment := range assessments {
		if assessment.Item == nil {
			continue
		}
		// Weightless assessments without a pass threshold are practice
		// material and never appear in the verdict.
		if assessment.Weight == 0 && assessment.Item.PassingPoint == 0 {
			continue
		}
		criteria = append(criteria, GradingCriterion{
			Key:          assessment.ItemID,
			Title:        assessment.Item.Title,
			Kind:         assessment.Item.Kind,
			Weight:       assessment.Weight,
			PassingPoint: assessment.Item.PassingPoint,
		})
	}

	normalizeWeights(criteria, policy)
	return criteria, nil
}

// normalizeWeights distributes 100 points across the criteria. The
// completion criterion receives its exact policy share; assessment criteria
// split the assessment share proportionally to their raw weights, rounded
// half-up to one decimal, with the exact rounding residual folded into the
// criterion holding the largest raw weight so the total stays 100.
func normalizeWeights(criteria []GradingCriterion, policy models.GradingPolicy) {
	if len(criteria) == 0 {
		return
	}

	total := policy.AssessmentWeight + policy.CompletionWeight
	if total == 0 {
		return
	}
	if len(criteria) == 1 {
		criteria[0].NormalizedWeight = 100
		return
	}

	assessmentRatio := float64(policy.AssessmentWeight) * 100 / float64(total)

	totalAssessmentWeight := 0
	for i := range criteria {
		if criteria[i].Kind == CriterionCompletion {
			criteria[i].NormalizedWeight = float64(policy.CompletionWeight) * 100 / float64(total)
			continue
		}
		totalAssessmentWeight += criteria[i].Weight
	}
	if totalAssessmentWeight == 0 {
		return
	}

	sum := 0.0
	largest := -1
	for i := range criteria {
		if criteria[i].Kind == CriterionCompletion {
			continue
		}
		criteria[i].NormalizedWeight = roundTenth(float64(criteria[i].Weight) / float64(totalAssessmentWeight) * assessmentRatio)
		sum += criteria[i].NormalizedWeight
		if largest == -1 || criteria[i].Weight > criteria[largest].Weight {
			largest = i
		}
	}

	if residual := assessmentRatio - sum; residual != 0 && largest >= 0 {
		criteria[largest].NormalizedWeight += residual
	}
}

func (s *courseGradingService) GradeCourse(ctx context.Context, courseID, learnerID string, graderID *string) (models.Gradebook, error) {
	tracer := otel.Tracer("github.com/minima-lms/minima-api/internal/service/course_grading")
	ctx, span := tracer.Start(ctx, "course_grading.compute")
	span.SetAttributes(
		attribute.String("course_grading.course_id", courseID),
		attribute.String("course_grading.learner_id", learnerID),
	)
	defer span.End()

	engagement, err := s.engagements.GetActive(ctx, courseID, learnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Gradebook{}, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "engagement_lookup_failed")
		return models.Gradebook{}, err
	}

	criteria, err := s.BuildCriteria(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "criteria_build_failed")
		return models.Gradebook{}, err
	}

	completionRate, err := s.completionRate(ctx, courseID, learnerID, engagement.Context())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion_rate_failed")
		return models.Gradebook{}, err
	}

	details := map[string]interface{}{}
	totalScore := 0.0
	failedExists := false

	for _, criterion := range criteria {
		var value float64
		var graded bool

		if criterion.Kind == CriterionCompletion {
			value, graded = completionRate, true
		} else {
			grade, err := s.grades.GetConfirmedByKey(ctx, criterion.Key, learnerID, engagement.Context())
			switch {
			case err == nil:
				value, graded = grade.Score, true
			case errors.Is(err, gorm.ErrRecordNotFound):
				// Missing confirmed grades count as zero and always fail
				// the criterion, whatever its pass threshold.
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, "grade_lookup_failed")
				return models.Gradebook{}, err
			}
		}

		passed := graded && value >= float64(criterion.PassingPoint)
		if !passed {
			failedExists = true
		}
		if criterion.NormalizedWeight > 0 {
			totalScore += value * criterion.NormalizedWeight / 100
		}

		details[criterion.Key] = map[string]interface{}{
			"title":             criterion.Title,
			"kind":              criterion.Kind,
			"score":             value,
			"graded":            graded,
			"passing_point":     criterion.PassingPoint,
			"normalized_weight": criterion.NormalizedWeight,
			"passed":            passed,
		}
	}

	gradebook := models.Gradebook{
		EngagementID:   engagement.ID,
		Details:        details,
		Score:          roundTenth(totalScore),
		CompletionRate: roundTenth(completionRate),
		Passed:         !failedExists,
		GraderID:       graderID,
	}
	if err := s.gradebooks.Upsert(ctx, &gradebook); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gradebook_save_failed")
		return models.Gradebook{}, err
	}

	observability.GradebooksComputed().Inc()
	s.publisher.Publish(events.SubjectGradebookUpdated, map[string]interface{}{
		"course_id":  courseID,
		"learner_id": learnerID,
		"score":      gradebook.Score,
		"passed":     gradebook.Passed,
	})
	s.logger.Info().
		Str("course_id", courseID).
		Str("learner_id", learnerID).
		Float64("score", gradebook.Score).
		Bool("passed", gradebook.Passed).
		Msg("course gradebook computed")
	return gradebook, nil
}

func (s *courseGradingService) ConfirmGradebook(ctx context.Context, courseID, learnerID, graderID string) (models.Gradebook, error) {
	gradebook, err := s.GradeCourse(ctx, courseID, learnerID, &graderID)
	if err != nil {
		return models.Gradebook{}, err
	}
	if gradebook.ConfirmedAt != nil {
		return gradebook, nil
	}

	confirmedAt := s.now()
	if err := s.gradebooks.Confirm(ctx, gradebook.EngagementID, confirmedAt, graderID); err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Gradebook{}, err
		}
	}
	return s.gradebooks.GetByEngagement(ctx, gradebook.EngagementID)
}

// completionRate is the percentage of lessons whose every media the learner
// passed. Lessons without media never count as passed.
func (s *courseGradingService) completionRate(ctx context.Context, courseID, learnerID, contextKey string) (float64, error) {
	course, err := s.courses.GetWithLessons(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if len(course.Lessons) == 0 {
		return 0, nil
	}

	passedIDs, err := s.watches.ListPassedMediaIDs(ctx, learnerID, contextKey)
	if err != nil {
		return 0, err
	}
	passed := map[string]bool{}
	for _, id := range passedIDs {
		passed[id] = true
	}

	passedLessons := 0
	for _, lesson := range course.Lessons {
		if len(lesson.Medias) == 0 {
			continue
		}
		complete := true
		for _, media := range lesson.Medias {
			if !passed[media.ID] {
				complete = false
				break
			}
		}
		if complete {
			passedLessons++
		}
	}
	return float64(passedLessons) * 100 / float64(len(course.Lessons)), nil
}
