package handlers

import (
	"errors"
	"log/slog"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
)

// writeError renders err as the standard error body. Server-side failures are
// logged and reported to Sentry; their cause never reaches the client.
func writeError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		reportServerError(c, err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Message: apperrors.PublicMessage(err),
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: message,
	})
}

func reportServerError(c *fiber.Ctx, err error) {
	slog.Error("server error",
		"method", c.Method(),
		"path", c.Path(),
		"request_id", requestID(c),
		"error", err.Error(),
	)
	if hub := sentryfiber.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}

// ErrorHandler is the fiber app error handler for anything a handler returns
// instead of writing itself.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		message := fe.Message
		if fe.Code >= fiber.StatusInternalServerError {
			reportServerError(c, err)
			message = "Internal server error"
		}
		return c.Status(fe.Code).JSON(dto.ErrorResponse{
			Error: true, Message: message,
		})
	}
	return writeError(c, err)
}
