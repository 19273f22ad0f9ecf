package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"beershop/internal/delivery/http/reqctx"
	"beershop/internal/metrics"
	"beershop/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

// SessionMiddleware resolves the session cookie once per request. A store
// failure is recorded, not swallowed: gates that need the session turn it
// into a 503 instead of treating the caller as anonymous.
func SessionMiddleware(sessions SessionGuard, cookies reqctx.Cookies) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := cookies.Token(c)
			session, err := sessions.Resolve(c.Request().Context(), token)
			reqctx.SetSession(c, session, err)
			return next(c)
		}
	}
}

// MetricsMiddleware records request duration by method, route and status.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				var appErr *customerrors.AppError
				kind := "internal"
				switch {
				case errors.As(err, &appErr):
					status = appErr.Status()
					kind = string(appErr.Kind)
				case errors.As(err, &he):
					status = he.Code
					kind = "http_" + strconv.Itoa(he.Code)
				default:
					status = http.StatusInternalServerError
				}
				m.TotalErrors.WithLabelValues(kind).Inc()
			}
			m.RequestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
