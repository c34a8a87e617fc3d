package service

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/events"
	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/observability"
	"github.com/minima-lms/minima-api/internal/repository"
)

// SessionService drives the learner-facing attempt lifecycle for every item
// kind. The session step is derived on each call from the attempt, submission
// and grade records; nothing stores it.
type SessionService interface {
	GetSession(ctx context.Context, kind, itemID, learnerID, courseID string) (dto.SessionView, error)
	StartAttempt(ctx context.Context, kind, itemID, learnerID, courseID string) (dto.StartAttemptResponse, error)
	SaveProgress(ctx context.Context, kind, itemID, learnerID, courseID string, payload dto.SaveProgressRequest) error
	Submit(ctx context.Context, kind, itemID, learnerID, courseID string, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SessionView, error)
	Deactivate(ctx context.Context, kind, itemID, learnerID, courseID string) error
}

type sessionService struct {
	items        repository.ItemRepository
	questions    repository.QuestionRepository
	attempts     repository.AttemptRepository
	submissions  repository.SubmissionRepository
	scratch      repository.ScratchRepository
	grades       repository.GradeRepository
	appeals      repository.AppealRepository
	engagements  repository.EngagementRepository
	resolver     AccessResolver
	verification VerificationService
	grading      GradingService
	stats        StatsService
	validator    *validator.Validate
	publisher    events.Publisher
	sanitizer    *bluemonday.Policy
	stripper     *bluemonday.Policy
	grace        time.Duration
	logger       zerolog.Logger
	now          func() time.Time
	rng          rngSource
}

// SessionServiceDeps bundles the collaborators of the session service.
type SessionServiceDeps struct {
	Items        repository.ItemRepository
	Questions    repository.QuestionRepository
	Attempts     repository.AttemptRepository
	Submissions  repository.SubmissionRepository
	Scratch      repository.ScratchRepository
	Grades       repository.GradeRepository
	Appeals      repository.AppealRepository
	Engagements  repository.EngagementRepository
	Resolver     AccessResolver
	Verification VerificationService
	Grading      GradingService
	Stats        StatsService
	Validator    *validator.Validate
	Publisher    events.Publisher
	GracePeriod  time.Duration
	Logger       zerolog.Logger
}

// NewSessionService constructs the session service.
func NewSessionService(deps SessionServiceDeps) SessionService {
	return &sessionService{
		items:        deps.Items,
		questions:    deps.Questions,
		attempts:     deps.Attempts,
		submissions:  deps.Submissions,
		scratch:      deps.Scratch,
		grades:       deps.Grades,
		appeals:      deps.Appeals,
		engagements:  deps.Engagements,
		resolver:     deps.Resolver,
		verification: deps.Verification,
		grading:      deps.Grading,
		stats:        deps.Stats,
		validator:    deps.Validator,
		publisher:    deps.Publisher,
		sanitizer:    bluemonday.UGCPolicy(),
		stripper:     bluemonday.StrictPolicy(),
		grace:        deps.GracePeriod,
		logger:       deps.Logger.With().Str("component", "session_service").Logger(),
		now:          time.Now,
		rng:          defaultRNG{},
	}
}

func (s *sessionService) GetSession(ctx context.Context, kind, itemID, learnerID, courseID string) (dto.SessionView, error) {
	item, window, contextKey, err := s.openSession(ctx, kind, itemID, learnerID, courseID, false)
	if err != nil {
		return dto.SessionView{}, err
	}

	view := dto.SessionView{
		AccessWindow: window,
		GradingDates: item.GradingDates(window),
		Item:         dto.NewItemResponse(item),
	}

	attempt, err := s.attempts.GetActive(ctx, itemID, learnerID, contextKey)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionView{}, err
		}
		view.Step = dto.StepReady
		if item.VerificationRequired {
			verified, err := s.verification.Verified(ctx, learnerID, item.ID)
			if err != nil {
				return dto.SessionView{}, err
			}
			if !verified {
				token, err := s.verification.IssueToken(learnerID, item.ID)
				if err != nil {
					return dto.SessionView{}, err
				}
				view.OtpToken = token
			}
		}
		return view, nil
	}

	attemptResponse := dto.NewAttemptResponse(attempt, item)
	view.Attempt = &attemptResponse

	capability := kindCapabilities[item.Kind]
	if attempt.Submission == nil {
		deadline := attempt.Deadline(item)
		if capability.hasDeadline && !deadline.IsZero() && s.now().After(deadline.Add(s.grace)) {
			view.Step = dto.StepTimeout
			return view, nil
		}

		view.Step = dto.StepSitting
		questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
		if err != nil {
			return dto.SessionView{}, err
		}
		for _, question := range questions {
			view.Questions = append(view.Questions, dto.NewQuestionResponse(question))
		}
		if attempt.ScratchPad != nil {
			view.SavedAnswers = attempt.ScratchPad.Answers
		}
		return view, nil
	}

	submissionResponse := dto.NewSubmissionResponse(*attempt.Submission, nil)
	view.Submission = &submissionResponse

	grade := attempt.Grade
	if grade == nil || grade.CompletedAt == nil {
		view.Step = dto.StepGrading
		return view, nil
	}

	if err := s.populateReview(ctx, &view, attempt, *grade); err != nil {
		return dto.SessionView{}, err
	}

	if grade.ConfirmedAt == nil {
		view.Step = dto.StepReviewing
		return view, nil
	}

	view.Step = dto.StepFinal
	itemStats, err := s.stats.ItemStats(ctx, item.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to load score stats")
	} else {
		view.Stats = &itemStats
	}
	return view, nil
}

func (s *sessionService) StartAttempt(ctx context.Context, kind, itemID, learnerID, courseID string) (dto.StartAttemptResponse, error) {
	item, _, contextKey, err := s.openSession(ctx, kind, itemID, learnerID, courseID, true)
	if err != nil {
		return dto.StartAttemptResponse{}, err
	}

	if item.VerificationRequired {
		verified, err := s.verification.Verified(ctx, learnerID, item.ID)
		if err != nil {
			return dto.StartAttemptResponse{}, err
		}
		if !verified {
			return dto.StartAttemptResponse{}, ErrVerificationRequired
		}
	}

	if item.MaxAttempts > 0 {
		count, err := s.attempts.CountByKey(ctx, itemID, learnerID, contextKey)
		if err != nil {
			return dto.StartAttemptResponse{}, err
		}
		if count >= int64(item.MaxAttempts) {
			return dto.StartAttemptResponse{}, ErrMaxAttemptsReached
		}
	}

	capability := kindCapabilities[item.Kind]
	questionIDs, err := capability.selectContent(ctx, s, item)
	if err != nil {
		return dto.StartAttemptResponse{}, err
	}

	attempt := models.Attempt{
		ItemID:      itemID,
		LearnerID:   learnerID,
		Context:     contextKey,
		QuestionIDs: questionIDs,
		StartedAt:   s.now(),
		Active:      true,
	}
	if err := s.attempts.Create(ctx, &attempt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.StartAttemptResponse{}, ErrAttemptAlreadyStarted
		}
		return dto.StartAttemptResponse{}, err
	}

	observability.AttemptsStarted().WithLabelValues(item.Kind).Inc()
	s.logger.Info().
		Str("item_id", itemID).
		Str("learner_id", learnerID).
		Uint("attempt_id", attempt.ID).
		Int("questions", len(questionIDs)).
		Msg("attempt started")

	questions, err := s.questions.GetByIDs(ctx, questionIDs)
	if err != nil {
		return dto.StartAttemptResponse{}, err
	}

	response := dto.StartAttemptResponse{Attempt: dto.NewAttemptResponse(attempt, item)}
	for _, question := range questions {
		response.Questions = append(response.Questions, dto.NewQuestionResponse(question))
	}
	return response, nil
}

func (s *sessionService) SaveProgress(ctx context.Context, kind, itemID, learnerID, courseID string, payload dto.SaveProgressRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	item, _, contextKey, err := s.openSession(ctx, kind, itemID, learnerID, courseID, true)
	if err != nil {
		return err
	}

	capability := kindCapabilities[item.Kind]
	if !capability.supportsScratch {
		return ErrNotFound
	}

	attempt, err := s.attempts.GetActive(ctx, itemID, learnerID, contextKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if attempt.Submission != nil {
		return ErrAttemptAlreadySubmitted
	}

	deadline := attempt.Deadline(item)
	if !deadline.IsZero() && s.now().After(deadline.Add(s.grace)) {
		return ErrAttemptExpired
	}

	drawn := map[string]bool{}
	for _, id := range attempt.QuestionIDs {
		drawn[questionKey(id)] = true
	}
	answers := map[string]interface{}{}
	for key, value := range payload.Answers {
		if drawn[key] {
			answers[key] = value
		}
	}
	if len(answers) == 0 {
		return ErrNoAnswers
	}
	return s.scratch.Merge(ctx, attempt.ID, answers)
}

func (s *sessionService) Submit(ctx context.Context, kind, itemID, learnerID, courseID string, payload dto.SubmitRequest, files []*multipart.FileHeader) (dto.SessionView, error) {
	item, _, contextKey, err := s.openSession(ctx, kind, itemID, learnerID, courseID, true)
	if err != nil {
		return dto.SessionView{}, err
	}

	attempt, err := s.attempts.GetActive(ctx, itemID, learnerID, contextKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SessionView{}, ErrNotFound
		}
		return dto.SessionView{}, err
	}
	if attempt.Submission != nil {
		return dto.SessionView{}, ErrAttemptAlreadySubmitted
	}

	capability := kindCapabilities[item.Kind]
	deadline := attempt.Deadline(item)
	if capability.hasDeadline && !deadline.IsZero() && s.now().After(deadline.Add(s.grace)) {
		observability.AttemptsExpired().WithLabelValues(item.Kind).Inc()
		return dto.SessionView{}, ErrAttemptExpired
	}

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return dto.SessionView{}, err
	}

	answers, text, attachments, err := capability.buildSubmission(s, questions, payload, files)
	if err != nil {
		return dto.SessionView{}, err
	}

	submission := models.Submission{
		AttemptID: attempt.ID,
		Answers:   answers,
		Text:      text,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.SessionView{}, ErrAttemptAlreadySubmitted
		}
		return dto.SessionView{}, err
	}
	for i := range attachments {
		attachments[i].SubmissionID = submission.ID
	}
	if err := s.submissions.CreateAttachments(ctx, attachments); err != nil {
		return dto.SessionView{}, err
	}

	if _, err := s.grading.GradePreliminary(ctx, attempt, item, questions, submission); err != nil {
		return dto.SessionView{}, err
	}

	observability.Submissions().WithLabelValues(item.Kind).Inc()
	s.publisher.Publish(events.SubjectAttemptSubmitted, map[string]interface{}{
		"attempt_id": attempt.ID,
		"item_id":    itemID,
		"learner_id": learnerID,
		"kind":       item.Kind,
	})
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Str("item_id", itemID).
		Str("learner_id", learnerID).
		Msg("submission recorded")

	return s.GetSession(ctx, kind, itemID, learnerID, courseID)
}

func (s *sessionService) Deactivate(ctx context.Context, kind, itemID, learnerID, courseID string) error {
	item, _, contextKey, err := s.openSession(ctx, kind, itemID, learnerID, courseID, true)
	if err != nil {
		return err
	}

	attempt, err := s.attempts.GetActive(ctx, itemID, learnerID, contextKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if item.MaxAttempts > 0 {
		count, err := s.attempts.CountByKey(ctx, itemID, learnerID, contextKey)
		if err != nil {
			return err
		}
		if count >= int64(item.MaxAttempts) {
			return ErrMaxAttemptsReached
		}
	}

	attempt.Active = false
	if err := s.attempts.Update(ctx, &attempt); err != nil {
		return err
	}

	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Str("learner_id", learnerID).
		Msg("attempt deactivated for retake")
	return nil
}

// openSession loads the item, resolves the learner's access window, checks it
// against now and resolves the attempt context key.
func (s *sessionService) openSession(ctx context.Context, kind, itemID, learnerID, courseID string, mutating bool) (models.Item, models.AccessWindow, string, error) {
	if _, ok := kindCapabilities[kind]; !ok {
		return models.Item{}, models.AccessWindow{}, "", ErrNotFound
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Item{}, models.AccessWindow{}, "", ErrNotFound
		}
		return models.Item{}, models.AccessWindow{}, "", err
	}
	if item.Kind != kind {
		return models.Item{}, models.AccessWindow{}, "", ErrNotFound
	}

	window, err := s.resolver.Resolve(ctx, learnerID, itemID, kind, courseID)
	if err != nil {
		return models.Item{}, models.AccessWindow{}, "", err
	}
	if err := s.resolver.Check(window, s.now(), mutating); err != nil {
		return models.Item{}, models.AccessWindow{}, "", err
	}

	contextKey := ""
	if courseID != "" {
		engagement, err := s.engagements.GetActive(ctx, courseID, learnerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Item{}, models.AccessWindow{}, "", ErrAccessDenied
			}
			return models.Item{}, models.AccessWindow{}, "", err
		}
		contextKey = engagement.Context()
	}
	return item, window, contextKey, nil
}

// populateReview fills the grade, solutions and appeal state shown from
// REVIEWING onwards.
func (s *sessionService) populateReview(ctx context.Context, view *dto.SessionView, attempt models.Attempt, grade models.Grade) error {
	gradeResponse := dto.NewGradeResponse(grade)
	view.Grade = &gradeResponse

	questions, err := s.questions.GetByIDs(ctx, attempt.QuestionIDs)
	if err != nil {
		return err
	}
	view.Solutions = map[string]dto.SolutionResponse{}
	for _, question := range questions {
		view.Questions = append(view.Questions, dto.NewQuestionResponse(question))
		if question.Solution != nil {
			view.Solutions[questionKey(question.ID)] = dto.NewSolutionResponse(*question.Solution)
		}
	}

	appeals, err := s.appeals.ListByQuestions(ctx, attempt.LearnerID, attempt.QuestionIDs)
	if err != nil {
		return err
	}
	if len(appeals) > 0 {
		view.Appeals = map[string]dto.AppealResponse{}
		for _, appeal := range appeals {
			view.Appeals[questionKey(appeal.QuestionID)] = dto.NewAppealResponse(appeal)
		}
	}
	return nil
}
