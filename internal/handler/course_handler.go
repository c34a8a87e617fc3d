package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// CourseHandler exposes course-level session endpoints.
type CourseHandler struct {
	service service.EngagementService
	logger  zerolog.Logger
}

// NewCourseHandler builds a course handler instance.
func NewCourseHandler(service service.EngagementService, logger zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		service: service,
		logger:  logger.With().Str("component", "course_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *CourseHandler) Register(router fiber.Router) {
	router.Get("/:id/session", h.getSession)
	router.Post("/:id/engage", h.engage)
	router.Post("/:id/certificate/request", h.requestCertificate)
}

func (h *CourseHandler) getSession(c *fiber.Ctx) error {
	view, err := h.service.CourseSession(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "course session retrieved", view)
}

func (h *CourseHandler) engage(c *fiber.Ctx) error {
	engagement, err := h.service.Engage(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course engagement started", engagement)
}

func (h *CourseHandler) requestCertificate(c *fiber.Ctx) error {
	response, err := h.service.RequestCertificate(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "certificate requested", response)
}
