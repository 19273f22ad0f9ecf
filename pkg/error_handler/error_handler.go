package errorhandler

import (
	"errors"
	"log/slog"
	"net/http"

	"beershop/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error   string                     `json:"error"`
	Details []customerrors.FieldError `json:"details,omitempty"`
}

// HandleError is the top-level fallback for every route. Only messages of
// typed errors reach the client; anything else becomes a bare 500.
func HandleError(err error, c echo.Context) {
	code := http.StatusInternalServerError
	resp := errorResponse{Error: "Internal Server Error"}

	var appErr *customerrors.AppError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code = appErr.Status()
		if appErr.Kind != customerrors.KindInternal {
			resp.Error = appErr.Message
			resp.Details = appErr.Fields
		}
	case errors.As(err, &he):
		code = he.Code
		if msg, ok := he.Message.(string); ok && code < http.StatusInternalServerError {
			resp.Error = msg
		} else if code < http.StatusInternalServerError {
			resp.Error = http.StatusText(code)
		}
	}

	if code >= http.StatusInternalServerError {
		slog.Error("Internal Server Error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	} else {
		slog.Warn("Handled error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, resp)
		}
		if err != nil {
			slog.Error("failed to write error response", "err", err)
		}
	}
}
