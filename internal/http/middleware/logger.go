package middleware

import (
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"fileshare/internal/config"
	"fileshare/internal/logger"
)

// ErrorLocalKey holds the error a handler answered with, so the access log can carry the cause
// that never reaches the client.
const ErrorLocalKey = "handler_error"

// Logger logs one line per HTTP request with request_id, method, path, status and latency
// (milliseconds, as float). Errors returned down the chain are rendered by the app's
// ErrorHandler first so the logged status is the one the client sees.
func Logger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			if c.Locals(ErrorLocalKey) == nil {
				c.Locals(ErrorLocalKey, err)
			}
		}

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Error()
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		if cause, ok := c.Locals(ErrorLocalKey).(error); ok {
			ev = ev.Err(cause)
		}

		ev.Str("request_id", RequestIDFromCtx(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Msg("request")
		return nil
	}
}

// LoggerWithWriter is Logger writing JSON lines to w with timestamps in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return Logger(logger.NewWithWriter(w, config.LogConfig{Level: "debug"}, loc))
}
