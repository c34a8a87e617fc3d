package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
)

// Content kinds the resolver understands beyond the item kinds.
const (
	ContentKindMedia  = "media"
	ContentKindCourse = "course"
)

// AccessResolver derives the access window gating every session operation.
// Resolve collects all grants a learner holds on a content id, merges them to
// the most favorable window and, when the content is reached through a
// course, narrows it by the course schedule. Check evaluates a window against
// a point in time.
type AccessResolver interface {
	Resolve(ctx context.Context, learnerID, contentID, kind, courseID string) (models.AccessWindow, error)
	Check(window models.AccessWindow, now time.Time, mutating bool) error
}

type accessResolver struct {
	enrollments repository.EnrollmentRepository
	public      repository.PublicAccessRepository
	courses     repository.CourseRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAccessResolver instantiates the resolver with its repositories.
func NewAccessResolver(
	enrollments repository.EnrollmentRepository,
	public repository.PublicAccessRepository,
	courses repository.CourseRepository,
	logger zerolog.Logger,
) AccessResolver {
	return &accessResolver{
		enrollments: enrollments,
		public:      public,
		courses:     courses,
		logger:      logger,
		now:         time.Now,
	}
}

func (r *accessResolver) Resolve(ctx context.Context, learnerID, contentID, kind, courseID string) (models.AccessWindow, error) {
	// Grants attach to the course when the content is reached through one;
	// the course schedule then redistributes the window per content.
	grantKey := contentID
	if courseID != "" {
		grantKey = courseID
	}

	var windows []models.AccessWindow

	enrollment, err := r.enrollments.GetActive(ctx, learnerID, grantKey)
	switch {
	case err == nil:
		windows = append(windows, enrollment.Window())
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.AccessWindow{}, err
	}

	if kind == ContentKindMedia {
		access, err := r.public.GetCurrent(ctx, contentID, r.now())
		switch {
		case err == nil:
			windows = append(windows, access.Window())
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return models.AccessWindow{}, err
		}
	}

	if len(windows) == 0 {
		r.logger.Warn().
			Str("learner_id", learnerID).
			Str("content_id", contentID).
			Str("kind", kind).
			Msg("no access grant found")
		return models.AccessWindow{}, ErrAccessDenied
	}

	merged := windows[0]
	for _, w := range windows[1:] {
		merged = merged.Merge(w)
	}

	if courseID == "" || kind == ContentKindCourse {
		return merged, nil
	}

	return r.applyCourseSchedule(ctx, merged, contentID, kind, courseID)
}

// applyCourseSchedule narrows a course-level window by the day offsets the
// course binds the content with. Content the course does not reference is
// unreachable through it.
func (r *accessResolver) applyCourseSchedule(ctx context.Context, window models.AccessWindow, contentID, kind, courseID string) (models.AccessWindow, error) {
	var startOffset int
	var endOffset *int

	if kind == ContentKindMedia {
		lesson, err := r.courses.GetLessonByMedia(ctx, courseID, contentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				r.logger.Warn().
					Str("course_id", courseID).
					Str("media_id", contentID).
					Msg("media is not part of the course")
				return models.AccessWindow{}, ErrAccessDenied
			}
			return models.AccessWindow{}, err
		}
		startOffset, endOffset = lesson.StartOffset, lesson.EndOffset
	} else {
		assessment, err := r.courses.GetAssessment(ctx, courseID, contentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				r.logger.Warn().
					Str("course_id", courseID).
					Str("item_id", contentID).
					Msg("item is not part of the course")
				return models.AccessWindow{}, ErrAccessDenied
			}
			return models.AccessWindow{}, err
		}
		startOffset, endOffset = assessment.StartOffset, assessment.EndOffset
	}

	// End offsets count from the scheduled start, not the window start.
	scheduled := window
	scheduled.Start = window.Start.AddDate(0, 0, startOffset)
	if endOffset != nil {
		scheduled.End = scheduled.Start.AddDate(0, 0, *endOffset)
	}
	return scheduled, nil
}

func (r *accessResolver) Check(window models.AccessWindow, now time.Time, mutating bool) error {
	switch {
	case now.Before(window.Start):
		return ErrContentNotAvailable
	case now.Before(window.End):
		return nil
	case now.Before(window.Archive):
		if mutating {
			return ErrContentReadOnly
		}
		return nil
	default:
		return ErrReviewPeriodOver
	}
}
