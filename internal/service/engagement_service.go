package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
	"github.com/minima-lms/minima-api/pkg/certificate"
)

// EngagementService manages course-level sessions. An engagement scopes every
// attempt and watch a learner takes under the course via its context key.
type EngagementService interface {
	Engage(ctx context.Context, courseID, learnerID string) (dto.EngagementResponse, error)
	CourseSession(ctx context.Context, courseID, learnerID string) (dto.CourseSessionView, error)
	RequestCertificate(ctx context.Context, courseID, learnerID string) (dto.CertificateRequestResponse, error)
}

type engagementService struct {
	courses      repository.CourseRepository
	engagements  repository.EngagementRepository
	gradebooks   repository.GradebookRepository
	watches      repository.WatchRepository
	resolver     AccessResolver
	verification VerificationService
	certificates certificate.Client
	logger       zerolog.Logger
	now          func() time.Time
}

// NewEngagementService constructs the engagement service. certificates may be
// nil when no issuer is configured.
func NewEngagementService(
	courses repository.CourseRepository,
	engagements repository.EngagementRepository,
	gradebooks repository.GradebookRepository,
	watches repository.WatchRepository,
	resolver AccessResolver,
	verification VerificationService,
	certificates certificate.Client,
	logger zerolog.Logger,
) EngagementService {
	return &engagementService{
		courses:      courses,
		engagements:  engagements,
		gradebooks:   gradebooks,
		watches:      watches,
		resolver:     resolver,
		verification: verification,
		certificates: certificates,
		logger:       logger.With().Str("component", "engagement_service").Logger(),
		now:          time.Now,
	}
}

func (s *engagementService) Engage(ctx context.Context, courseID, learnerID string) (dto.EngagementResponse, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EngagementResponse{}, ErrNotFound
		}
		return dto.EngagementResponse{}, err
	}

	window, err := s.resolver.Resolve(ctx, learnerID, courseID, ContentKindCourse, "")
	if err != nil {
		return dto.EngagementResponse{}, err
	}
	if err := s.resolver.Check(window, s.now(), true); err != nil {
		return dto.EngagementResponse{}, err
	}

	if course.VerificationRequired {
		verified, err := s.verification.Verified(ctx, learnerID, course.ID)
		if err != nil {
			return dto.EngagementResponse{}, err
		}
		if !verified {
			return dto.EngagementResponse{}, ErrVerificationRequired
		}
	}

	engagement := models.Engagement{
		CourseID:  courseID,
		LearnerID: learnerID,
		Active:    true,
	}
	if err := s.engagements.Create(ctx, &engagement); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.EngagementResponse{}, ErrAlreadyExists
		}
		return dto.EngagementResponse{}, err
	}

	s.logger.Info().
		Str("course_id", courseID).
		Str("learner_id", learnerID).
		Uint("engagement_id", engagement.ID).
		Msg("course engagement started")
	return dto.NewEngagementResponse(engagement), nil
}

func (s *engagementService) CourseSession(ctx context.Context, courseID, learnerID string) (dto.CourseSessionView, error) {
	course, err := s.courses.GetWithLessons(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseSessionView{}, ErrNotFound
		}
		return dto.CourseSessionView{}, err
	}

	window, err := s.resolver.Resolve(ctx, learnerID, courseID, ContentKindCourse, "")
	if err != nil {
		return dto.CourseSessionView{}, err
	}
	if err := s.resolver.Check(window, s.now(), false); err != nil {
		return dto.CourseSessionView{}, err
	}

	view := dto.CourseSessionView{
		Course:       dto.NewCourseResponse(course),
		AccessWindow: window,
	}

	var passed map[string]bool
	engagement, err := s.engagements.GetActive(ctx, courseID, learnerID)
	switch {
	case err == nil:
		response := dto.NewEngagementResponse(engagement)
		view.Engagement = &response

		passedIDs, err := s.watches.ListPassedMediaIDs(ctx, learnerID, engagement.Context())
		if err != nil {
			return dto.CourseSessionView{}, err
		}
		passed = map[string]bool{}
		for _, id := range passedIDs {
			passed[id] = true
		}

		if engagement.Gradebook != nil {
			gradebook := dto.NewGradebookResponse(*engagement.Gradebook)
			view.Gradebook = &gradebook
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if course.VerificationRequired {
			verified, err := s.verification.Verified(ctx, learnerID, course.ID)
			if err != nil {
				return dto.CourseSessionView{}, err
			}
			if !verified {
				token, err := s.verification.IssueToken(learnerID, course.ID)
				if err != nil {
					return dto.CourseSessionView{}, err
				}
				view.OtpToken = token
			}
		}
	default:
		return dto.CourseSessionView{}, err
	}

	for _, lesson := range course.Lessons {
		lessonView := dto.LessonView{
			ID:       lesson.ID,
			Title:    lesson.Title,
			Ordering: lesson.Ordering,
			Start:    window.Start.AddDate(0, 0, lesson.StartOffset),
			End:      window.End,
		}
		if lesson.EndOffset != nil {
			lessonView.End = lessonView.Start.AddDate(0, 0, *lesson.EndOffset)
		}

		lessonPassed := len(lesson.Medias) > 0
		for _, media := range lesson.Medias {
			mediaPassed := passed[media.ID]
			if !mediaPassed {
				lessonPassed = false
			}
			lessonView.Medias = append(lessonView.Medias, dto.MediaView{
				ID:           media.ID,
				Title:        media.Title,
				PassingPoint: media.PassingPoint,
				Passed:       mediaPassed,
			})
		}
		lessonView.Passed = lessonPassed
		view.Lessons = append(view.Lessons, lessonView)
	}

	assessments, err := s.courses.ListAssessments(ctx, courseID)
	if err != nil {
		return dto.CourseSessionView{}, err
	}
	for _, assessment := range assessments {
		if assessment.Item == nil {
			continue
		}
		assessmentView := dto.AssessmentView{
			ItemID: assessment.ItemID,
			Kind:   assessment.Item.Kind,
			Title:  assessment.Item.Title,
			Weight: assessment.Weight,
			Start:  window.Start.AddDate(0, 0, assessment.StartOffset),
			End:    window.End,
		}
		if assessment.EndOffset != nil {
			assessmentView.End = assessmentView.Start.AddDate(0, 0, *assessment.EndOffset)
		}
		view.Assessments = append(view.Assessments, assessmentView)
	}
	return view, nil
}

func (s *engagementService) RequestCertificate(ctx context.Context, courseID, learnerID string) (dto.CertificateRequestResponse, error) {
	engagement, err := s.engagements.GetActive(ctx, courseID, learnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CertificateRequestResponse{}, ErrNotFound
		}
		return dto.CertificateRequestResponse{}, err
	}

	gradebook, err := s.gradebooks.GetByEngagement(ctx, engagement.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CertificateRequestResponse{}, ErrNotQualifiedForCertificate
		}
		return dto.CertificateRequestResponse{}, err
	}
	if gradebook.ConfirmedAt == nil || !gradebook.Passed {
		return dto.CertificateRequestResponse{}, ErrNotQualifiedForCertificate
	}

	if s.certificates == nil {
		return dto.CertificateRequestResponse{}, errors.New("certificate issuer is not configured")
	}

	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return dto.CertificateRequestResponse{}, err
	}

	award, err := s.certificates.Issue(ctx, certificate.IssueRequest{
		CourseID:    courseID,
		CourseTitle: course.Title,
		LearnerID:   learnerID,
		Score:       gradebook.Score,
		EffortHours: course.EffortHours,
		CompletedAt: *gradebook.ConfirmedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("certificate issuance failed")
		return dto.CertificateRequestResponse{}, err
	}

	s.logger.Info().
		Str("course_id", courseID).
		Str("learner_id", learnerID).
		Str("certificate_id", award.ID).
		Msg("certificate requested")
	return dto.CertificateRequestResponse{
		CertificateID: award.ID,
		RequestedAt:   s.now(),
		Status:        award.Status,
	}, nil
}
