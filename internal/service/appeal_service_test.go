package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/models"
)

func newAppealFixture() (*appealService, *fakeAppealRepo) {
	appeals := &fakeAppealRepo{}
	questions := &fakeQuestionRepo{questions: []models.Question{
		{ID: 5, QuestionPoolID: 1, Format: models.QuestionFormatEssay, Point: 2},
	}}
	validate := validator.New(validator.WithRequiredStructEnabled())
	service := NewAppealService(appeals, questions, validate, testLogger()).(*appealService)
	return service, appeals
}

func TestAppealCreate(t *testing.T) {
	service, appeals := newAppealFixture()

	response, err := service.Create(context.Background(), 5, "learner-1", dto.AppealCreateRequest{
		Explanation: "the grading key ignores the alternative proof",
	})
	require.NoError(t, err)
	require.NotZero(t, response.ID)
	require.Equal(t, uint(5), response.QuestionID)
	require.Len(t, appeals.appeals, 1)
}

func TestAppealCreateDuplicate(t *testing.T) {
	service, _ := newAppealFixture()

	_, err := service.Create(context.Background(), 5, "learner-1", dto.AppealCreateRequest{
		Explanation: "the grading key ignores the alternative proof",
	})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), 5, "learner-1", dto.AppealCreateRequest{
		Explanation: "raising the same dispute again",
	})
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAppealCreateUnknownQuestion(t *testing.T) {
	service, _ := newAppealFixture()

	_, err := service.Create(context.Background(), 99, "learner-1", dto.AppealCreateRequest{
		Explanation: "question is long gone but the text is valid",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppealCreateValidatesExplanation(t *testing.T) {
	service, _ := newAppealFixture()

	_, err := service.Create(context.Background(), 5, "learner-1", dto.AppealCreateRequest{Explanation: "too short"})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}
