package systemHandler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"beershop/internal/config"
	"beershop/internal/metrics"
	"beershop/internal/resolver"
	"beershop/internal/validation"
	"beershop/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

var (
	errInvalidBrand        = customerrors.Validation("Invalid brand name")
	errExternalUnavailable = customerrors.New(customerrors.KindUpstreamUnavailable, "External service unavailable")
)

type SystemHandler struct {
	Fetcher   Fetcher
	Redirects RedirectChecker
	DB        Pinger
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	StatusURL       string
	StatusBodyBytes int64
	MaxBodyBytes    int64
}

// Fetcher performs SSRF-guarded GET requests.
type Fetcher interface {
	Get(ctx context.Context, raw string, maxBody int64) (resolver.FetchResult, error)
}

type RedirectChecker interface {
	Check(raw string) (string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewSystemHandler(fetcher Fetcher, redirects RedirectChecker, db Pinger, cfg config.OutboundConfig, m *metrics.Metrics, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		Fetcher:         fetcher,
		Redirects:       redirects,
		DB:              db,
		Metrics:         m,
		Logger:          logger,
		StatusURL:       cfg.StatusURL,
		StatusBodyBytes: cfg.StatusBodyBytes,
		MaxBodyBytes:    cfg.MaxBodyBytes,
	}
}

type StatusResponse struct {
	Status int `json:"status"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Status asks the external status service about brand. Every failure is
// reported the same way so nothing about the upstream leaks.
func (h *SystemHandler) Status(c echo.Context) error {
	values, err := validation.ValidateStrings(map[string]string{"brand": c.Param("brand")}, statusSchema)
	if err != nil {
		return errInvalidBrand
	}

	target, err := url.Parse(h.StatusURL)
	if err != nil {
		return customerrors.Internal(err)
	}
	q := target.Query()
	q.Set("q", values.String("brand"))
	target.RawQuery = q.Encode()

	res, err := h.Fetcher.Get(c.Request().Context(), target.String(), h.StatusBodyBytes)
	h.Metrics.ObserveOutbound(err)
	if err != nil {
		h.Logger.Warn("status lookup failed", slog.Any("error", err))
		return errExternalUnavailable
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: res.Status})
}

// Redirect sends the client to an allow-listed https host.
func (h *SystemHandler) Redirect(c echo.Context) error {
	values, err := validation.ValidateStrings(map[string]string{"url": c.QueryParam("url")}, urlSchema)
	if err != nil {
		return customerrors.Validation("Invalid URL")
	}
	target, err := h.Redirects.Check(values.String("url"))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, target)
}

// Test fetches a client-supplied URL after the SSRF checks. Redirects are
// reported, not followed.
func (h *SystemHandler) Test(c echo.Context) error {
	values, err := validation.ValidateStrings(map[string]string{"url": c.QueryParam("url")}, urlSchema)
	if err != nil {
		return customerrors.Validation("Invalid URL")
	}
	res, err := h.Fetcher.Get(c.Request().Context(), values.String("url"), h.MaxBodyBytes)
	h.Metrics.ObserveOutbound(err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SystemHandler) Health(c echo.Context) error {
	if err := h.DB.Ping(c.Request().Context()); err != nil {
		h.Logger.Error("health check failed", slog.Any("error", err))
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
