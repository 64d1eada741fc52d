package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/nightmap/internal/core/ports"
)

var errDisconnected = errors.New("disconnected")

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error. The cause is logged, not returned.
func errInternal(c *fiber.Ctx, err error) error {
	LoggerFromCtx(c.UserContext()).Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
	return newError(c, 500, "internal_error", "internal server error")
}

// errUpstream returns a 502 error for geocoder failures.
func errUpstream(c *fiber.Ctx, msg string) error {
	return newError(c, 502, "upstream_error", msg)
}

// errFromService maps a service error onto the envelope. notFound is the
// message used for ports.ErrNotFound.
func errFromService(c *fiber.Ctx, err error, notFound string) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return errNotFound(c, notFound)
	case errors.Is(err, ports.ErrGeocodeNoResult):
		return errNotFound(c, "no coordinates found for address")
	default:
		return errInternal(c, err)
	}
}
