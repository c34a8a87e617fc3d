package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// AppealHandler exposes grade dispute endpoints.
type AppealHandler struct {
	service service.AppealService
	logger  zerolog.Logger
}

// NewAppealHandler builds an appeal handler instance.
func NewAppealHandler(service service.AppealService, logger zerolog.Logger) *AppealHandler {
	return &AppealHandler{
		service: service,
		logger:  logger.With().Str("component", "appeal_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AppealHandler) Register(router fiber.Router) {
	router.Post("/:id/appeal", h.create)
}

func (h *AppealHandler) create(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AppealCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	appeal, err := h.service.Create(c.Context(), id, userIDFromContext(c), payload)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "appeal opened", appeal)
}
