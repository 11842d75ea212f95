package handlers

import (
	"fmt"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/logging"
	"github.com/gofiber/fiber/v2"
)

const genericMessage = "Something went wrong!"

// ErrorHandler is the single place errors are turned into responses. In
// development it returns everything, stack included; in production only
// operational messages reach the client.
func ErrorHandler(mode config.Mode) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		ae := apperror.Normalize(err)

		if !mode.IsProduction() {
			return c.Status(ae.StatusCode).JSON(fiber.Map{
				"status":  ae.Status,
				"error":   ae,
				"message": ae.Message,
				"stack":   fmt.Sprintf("%+v", err),
			})
		}

		if ae.Operational {
			return c.Status(ae.StatusCode).JSON(fiber.Map{
				"status":  ae.Status,
				"message": ae.Message,
			})
		}

		logging.Error().
			Err(err).
			Interface("request_id", c.Locals("requestid")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": genericMessage,
		})
	}
}
