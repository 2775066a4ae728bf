package middleware

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/services"
)

// ErrorHandler renders every error returned by a handler in the
// {"success": false, "message": ...} envelope. Errors without a known
// mapping are logged and reported as an opaque server error.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, message := classify(err)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		body := fiber.Map{"success": false, "message": message}

		var tooSoon *services.TooSoonError
		if errors.As(err, &tooSoon) {
			body["retry_after"] = tooSoon.SecondsLeft
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(tooSoon.SecondsLeft))
		}
		if errors.Is(err, services.ErrNotVerified) {
			body["needVerification"] = true
		}

		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, string) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	var tooSoon *services.TooSoonError
	switch {
	case errors.As(err, &tooSoon):
		return fiber.StatusTooManyRequests, err.Error()
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrOTPExpired),
		errors.Is(err, services.ErrOTPInvalid):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		return fiber.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrNotVerified):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, services.ErrOTPBlocked),
		errors.Is(err, services.ErrOTPRateLimited):
		return fiber.StatusTooManyRequests, err.Error()
	default:
		return fiber.StatusInternalServerError, "server error"
	}
}
