package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
)

// Envelope wraps every JSON response so clients can branch on Success alone.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func failure(c echo.Context, status int, message string, errs []string) error {
	return c.JSON(status, Envelope{
		Success:   false,
		Message:   message,
		Errors:    errs,
		Timestamp: time.Now().UTC(),
	})
}
