package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/bookstore/internal/domain"
	"github.com/Skotchmaster/bookstore/pkg/logging"
)

const internalMessage = "An unexpected error occurred. Please try again later."

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrInvalidRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail logs a service error and converts it for the error handler.
// Unknown errors pass through untouched and end up as a generic 500.
func fail(l *slog.Logger, op string, err error) error {
	if !domain.Known(err) {
		l.Error(op+"_failed", "status", 500, "error", err)
		return err
	}
	code := statusOf(err)
	l.Warn(op+"_failed", "status", code, "error", err)
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

// ErrorHandler renders every error in the response envelope.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	l := logging.FromContext(c.Request().Context())

	code := http.StatusInternalServerError
	message := internalMessage
	var details []string

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		details = validationMessages(he.Internal)
		if code >= 500 {
			l.Error("request_failed", "status", code, "error", err)
			message = internalMessage
		}
	case domain.Known(err):
		code = statusOf(err)
		message = err.Error()
	default:
		l.Error("unhandled_error", "status", code, "request_id", c.Response().Header().Get(echo.HeaderXRequestID), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := failure(c, code, message, details); werr != nil {
		l.Error("error_response_failed", "error", werr)
	}
}
