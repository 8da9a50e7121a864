package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"afterme/internal/http/middleware"
	"afterme/internal/service"
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

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal details. code is a machine-readable short code, message the
// human-readable safe text.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// NotFound covers absent, deleted and foreign documents alike so the API
// never confirms the existence of another user's records.
func writeServiceError(c *fiber.Ctx, err error) error {
	var (
		ve *service.ValidationError
		se *service.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", ve.Error())
	case errors.Is(err, service.ErrUnauthorized):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid caller identity")
	case errors.Is(err, service.ErrUserNotFound):
		return writeError(c, fiber.StatusNotFound, "USER_NOT_FOUND", "user not found")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.As(err, &se):
		return writeError(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "file storage unavailable")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "missing or invalid caller identity")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
