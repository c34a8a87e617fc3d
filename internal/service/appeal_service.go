package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
)

// AppealService records grade disputes. The unique (question, learner) index
// keeps disputes to one per question.
type AppealService interface {
	Create(ctx context.Context, questionID uint, learnerID string, payload dto.AppealCreateRequest) (dto.AppealResponse, error)
}

type appealService struct {
	appeals   repository.AppealRepository
	questions repository.QuestionRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAppealService constructs the appeal service.
func NewAppealService(appeals repository.AppealRepository, questions repository.QuestionRepository, validator *validator.Validate, logger zerolog.Logger) AppealService {
	return &appealService{
		appeals:   appeals,
		questions: questions,
		validator: validator,
		logger:    logger.With().Str("component", "appeal_service").Logger(),
		now:       time.Now,
	}
}

func (s *appealService) Create(ctx context.Context, questionID uint, learnerID string, payload dto.AppealCreateRequest) (dto.AppealResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AppealResponse{}, err
	}

	if _, err := s.questions.GetByID(ctx, questionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AppealResponse{}, ErrNotFound
		}
		return dto.AppealResponse{}, err
	}

	appeal := models.Appeal{
		QuestionID:  questionID,
		LearnerID:   learnerID,
		Explanation: payload.Explanation,
	}
	if err := s.appeals.Create(ctx, &appeal); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.AppealResponse{}, ErrAlreadyExists
		}
		return dto.AppealResponse{}, err
	}

	s.logger.Info().
		Uint("question_id", questionID).
		Str("learner_id", learnerID).
		Msg("grade appeal opened")
	return dto.NewAppealResponse(appeal), nil
}
