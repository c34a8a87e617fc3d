package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// VerificationLogRequest records the outcome of one external identity check.
type VerificationLogRequest struct {
	ConsumerID  string `json:"consumer_id" validate:"required"`
	Fingerprint string `json:"fingerprint"`
	Success     bool   `json:"success"`
}

// VerificationHandler records the results the external verification checker
// reports back.
type VerificationHandler struct {
	service service.VerificationService
	logger  zerolog.Logger
}

// NewVerificationHandler builds a verification handler instance.
func NewVerificationHandler(service service.VerificationService, logger zerolog.Logger) *VerificationHandler {
	return &VerificationHandler{
		service: service,
		logger:  logger.With().Str("component", "verification_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *VerificationHandler) Register(router fiber.Router) {
	router.Post("/logs", h.createLog)
}

func (h *VerificationHandler) createLog(c *fiber.Ctx) error {
	var payload VerificationLogRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if payload.ConsumerID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "consumer_id is required")
	}

	err := h.service.RecordCheck(c.Context(), userIDFromContext(c), payload.ConsumerID, payload.Fingerprint, payload.Success)
	if err != nil {
		return handleDomainError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "verification recorded", nil)
}
