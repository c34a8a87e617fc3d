package handler

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// SessionHandler exposes the learner-facing attempt lifecycle for items.
// Routes are keyed by item kind and id; a course_id query parameter scopes
// the session to a course engagement.
type SessionHandler struct {
	service service.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler builds a session handler instance.
func NewSessionHandler(service service.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger.With().Str("component", "session_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Get("/:kind/:id/session", h.getSession)
	router.Post("/:kind/:id/attempt", h.startAttempt)
	router.Post("/:kind/:id/attempt/save", h.saveProgress)
	router.Post("/:kind/:id/attempt/submit", h.submit)
	router.Delete("/:kind/:id/attempt", h.deactivate)
}

func (h *SessionHandler) getSession(c *fiber.Ctx) error {
	view, err := h.service.GetSession(c.Context(), c.Params("kind"), c.Params("id"), userIDFromContext(c), c.Query("course_id"))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "session retrieved", view)
}

func (h *SessionHandler) startAttempt(c *fiber.Ctx) error {
	response, err := h.service.StartAttempt(c.Context(), c.Params("kind"), c.Params("id"), userIDFromContext(c), c.Query("course_id"))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt started", response)
}

func (h *SessionHandler) saveProgress(c *fiber.Ctx) error {
	var payload dto.SaveProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	err := h.service.SaveProgress(c.Context(), c.Params("kind"), c.Params("id"), userIDFromContext(c), c.Query("course_id"), payload)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "progress saved", nil)
}

func (h *SessionHandler) submit(c *fiber.Ctx) error {
	payload, files, err := parseSubmitPayload(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	view, err := h.service.Submit(c.Context(), c.Params("kind"), c.Params("id"), userIDFromContext(c), c.Query("course_id"), payload, files)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", view)
}

func (h *SessionHandler) deactivate(c *fiber.Ctx) error {
	err := h.service.Deactivate(c.Context(), c.Params("kind"), c.Params("id"), userIDFromContext(c), c.Query("course_id"))
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "attempt deactivated", nil)
}

// parseSubmitPayload accepts either a JSON body (exams, discussions) or a
// multipart form with attachment files (assignments).
func parseSubmitPayload(c *fiber.Ctx) (dto.SubmitRequest, []*multipart.FileHeader, error) {
	var payload dto.SubmitRequest

	contentType := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		payload.Answer = c.FormValue("answer")
		form, err := c.MultipartForm()
		if err != nil {
			return dto.SubmitRequest{}, nil, err
		}
		return payload, form.File["attachments"], nil
	}

	if err := c.BodyParser(&payload); err != nil {
		return dto.SubmitRequest{}, nil, err
	}
	return payload, nil, nil
}
