package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/minima-lms/minima-api/internal/middleware"
	"github.com/minima-lms/minima-api/internal/service"
	"github.com/minima-lms/minima-api/internal/utils"
)

// handleDomainError maps service failures onto the response envelope.
// Categorical domain errors keep their stable code; validation failures are
// client errors; everything else is internal.
func handleDomainError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var domainErr *service.DomainError
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &domainErr):
		return utils.SendErrorCode(c, domainErr.Status, domainErr.Code, domainErr.Message)
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		logger.Error().
			Err(err).
			Str("correlation_id", middleware.GetCorrelationID(c)).
			Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) string {
	return middleware.UserID(c)
}
