package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/client-portal/internal/apperr"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidCredentials),
		errors.Is(err, apperr.ErrInvalidMFACode),
		errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

// writeError logs err under "portal.<op>.failed" and writes a flat
// {"error": msg} body.
func writeError(c *fiber.Ctx, logger *zap.Logger, op string, err error) error {
	code := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", requestID(c)),
		zap.Int("status", code),
		zap.Error(err),
	}
	if code >= fiber.StatusInternalServerError {
		logger.Error("portal."+op+".failed", fields...)
	} else {
		logger.Info("portal."+op+".failed", fields...)
	}
	return c.Status(code).JSON(fiber.Map{"error": apperr.Message(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ErrorHandler renders errors that escape handlers (unknown routes, body
// limits, panics turned into errors) in the same shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "operation failed"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
