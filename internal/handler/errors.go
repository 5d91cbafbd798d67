package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/user-authenticator/internal/apperr"
)

// ErrorHandler renders every error as {status_code, message, ...payload}.
// Typed flow errors keep their kind; echo's own errors (unknown route,
// wrong method) keep their status; anything else is a 500 with the generic
// message and is logged.
func ErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   map[string]any
		)
		var he *echo.HTTPError
		var ae *apperr.Error
		switch {
		case errors.As(err, &ae):
			status, body = ae.Status(), ae.Body()
			if ae.Kind == apperr.KindInternal {
				log.ErrorContext(c.Request().Context(), "request failed",
					"method", c.Request().Method, "path", c.Path(), "err", err)
			}
		case errors.As(err, &he):
			status = he.Code
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			} else if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
			body = map[string]any{"status_code": status, "message": msg}
		default:
			log.ErrorContext(c.Request().Context(), "unhandled error",
				"method", c.Request().Method, "path", c.Path(), "err", err)
			ae = apperr.From(err)
			status, body = ae.Status(), ae.Body()
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", "err", err)
		}
	}
}
