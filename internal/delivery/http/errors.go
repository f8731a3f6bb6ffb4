package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/assistant/internal/domain"
)

// NewErrorHandler maps handler errors onto the JSON error envelope
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code, kind, message := classify(err)
		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed", "method", c.Method(), "path", c.Path(), "kind", kind, "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"kind":    kind,
			"message": message,
		})
	}
}

func classify(err error) (code int, kind, message string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, "http", fe.Message
	}

	kind = domain.ErrorKind(err)
	switch kind {
	case "location_not_found":
		return fiber.StatusNotFound, kind, err.Error()
	case "invalid_input":
		return fiber.StatusBadRequest, kind, err.Error()
	case "metric_unavailable":
		return fiber.StatusUnprocessableEntity, kind, err.Error()
	case "fetch_failed", "malformed_response":
		return fiber.StatusBadGateway, kind, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal", "Internal Server Error"
	}
}
