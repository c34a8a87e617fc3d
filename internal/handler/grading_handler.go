package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// GradingHandler exposes the grader-facing workflow: reviewing attempts,
// entering and confirming grades, and computing course gradebooks.
type GradingHandler struct {
	grading service.GradingService
	courses service.CourseGradingService
	logger  zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(grading service.GradingService, courses service.CourseGradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading: grading,
		courses: courses,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Get("/attempts/:id", h.getAttempt)
	router.Patch("/attempts/:id", h.updateGrade)
	router.Post("/attempts/:id/confirm", h.confirmGrade)
	router.Get("/courses/:id/criteria", h.getCriteria)
	router.Post("/courses/:id/learners/:learner", h.gradeCourse)
	router.Post("/courses/:id/learners/:learner/confirm", h.confirmGradebook)
}

func (h *GradingHandler) getAttempt(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	view, err := h.grading.GradingView(c.Context(), id)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt retrieved", view)
}

func (h *GradingHandler) updateGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	grade, err := h.grading.UpdateGrade(c.Context(), id, payload, userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grade updated", dto.NewGradeResponse(grade))
}

func (h *GradingHandler) confirmGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.grading.ConfirmGrade(c.Context(), id, userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "grade confirmed", dto.NewGradeResponse(grade))
}

func (h *GradingHandler) getCriteria(c *fiber.Ctx) error {
	criteria, err := h.courses.BuildCriteria(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "criteria retrieved", criteria)
}

func (h *GradingHandler) gradeCourse(c *fiber.Ctx) error {
	graderID := userIDFromContext(c)
	gradebook, err := h.courses.GradeCourse(c.Context(), c.Params("id"), c.Params("learner"), &graderID)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course graded", dto.NewGradebookResponse(gradebook))
}

func (h *GradingHandler) confirmGradebook(c *fiber.Ctx) error {
	gradebook, err := h.courses.ConfirmGradebook(c.Context(), c.Params("id"), c.Params("learner"), userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course grade confirmed", dto.NewGradebookResponse(gradebook))
}
