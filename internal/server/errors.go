package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/chatline/internal/handlers"
	"github.com/nfrund/chatline/internal/middleware"
)

// setupErrorHandling installs an error handler that answers with the API
// error format and logs unhandled errors with a stack trace.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := middleware.FromContext(c.Request().Context())

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Code >= http.StatusInternalServerError {
				logger.Error("HTTP error", "status", he.Code, "error", err)
			}
			respond(c, he.Code, handlers.ErrorResponse{
				Code:    http.StatusText(he.Code),
				Message: fmt.Sprint(he.Message),
			})
			return
		}

		logger.Error("Internal Server Error (Unhandled)",
			"error", err,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()),
		)
		respond(c, http.StatusInternalServerError, handlers.ErrorResponse{
			Code:    "internal",
			Message: "internal error",
		})
	}
}

func respond(c echo.Context, status int, body handlers.ErrorResponse) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		middleware.FromContext(c.Request().Context()).Error("Failed to write error response", "error", err)
	}
}
