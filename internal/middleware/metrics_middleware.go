package middleware

import (
	"time"

	"github.com/arzan03/natours/internal/apperror"
	"github.com/arzan03/natours/internal/metrics"
	"github.com/gofiber/fiber/v2"
)

// Metrics records count and latency per matched route. Errors are counted
// with the status they will be rendered with.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperror.Normalize(err).StatusCode
		}
		metrics.RecordHTTPRequest(c.Method(), c.Route().Path, status, time.Since(start))
		return err
	}
}
