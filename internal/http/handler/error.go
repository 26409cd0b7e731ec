package handler

import (
	"database/sql"
	"errors"

	"github.com/gofiber/fiber/v2"

	"fileshare/internal/apperror"
	"fileshare/internal/http/middleware"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
// code is machine readable (e.g. "INVALID_ID", "QUOTA_EXCEEDED"), message is safe to show.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

var kindStatus = map[apperror.Kind]int{
	apperror.KindValidation:        fiber.StatusBadRequest,
	apperror.KindRateLimited:       fiber.StatusTooManyRequests,
	apperror.KindQuotaExceeded:     fiber.StatusRequestEntityTooLarge,
	apperror.KindStorageBackend:    fiber.StatusServiceUnavailable,
	apperror.KindPersistence:       fiber.StatusInternalServerError,
	apperror.KindAuthorization:     fiber.StatusForbidden,
	apperror.KindProtectedResource: fiber.StatusForbidden,
	apperror.KindConflict:          fiber.StatusConflict,
	apperror.KindNotFound:          fiber.StatusNotFound,
}

// writeAppError renders a service error. The reason, when present, is the code; otherwise
// the kind is. Server side failures keep their message generic and leave the cause to the
// access log.
func writeAppError(c *fiber.Ctx, err error) error {
	c.Locals(middleware.ErrorLocalKey, err)

	if errors.Is(err, sql.ErrNoRows) {
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
	}
	e, ok := apperror.As(err)
	if !ok {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}

	status, known := kindStatus[e.Kind]
	if !known {
		status = fiber.StatusInternalServerError
	}
	if e.Kind == apperror.KindAuthorization && e.Reason == apperror.ReasonUnauthenticated {
		status = fiber.StatusUnauthorized
	}

	code := string(e.Kind)
	if e.Reason != "" {
		code = string(e.Reason)
	}
	msg := e.Message
	if status >= fiber.StatusInternalServerError && e.Kind != apperror.KindStorageBackend {
		msg = "internal server error"
	}
	return writeError(c, status, code, msg)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
// It covers errors escaping middleware (identity resolution) as well as routing errors.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			return writeAppError(c, err)
		}

		switch fe.Code {
		case fiber.StatusBadRequest:
			return writeError(c, fe.Code, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, fe.Code, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, fe.Code, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, fe.Code, string(apperror.ReasonTooLarge), "request body too large")
		default:
			return writeError(c, fe.Code, "INTERNAL_ERROR", "internal server error")
		}
	}
}
