package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"beershop/domain/entity"
	"beershop/internal/delivery/http/reqctx"
	"beershop/internal/metrics"
	"beershop/internal/ratelimit"
	"beershop/internal/validation"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Policy is what a route demands from the gate pipeline.
type Policy struct {
	// Limit is an extra per-route budget on top of the global one.
	Limit *ratelimit.Rule
	// CSRF requires a valid anti-forgery token on state-changing methods.
	CSRF bool
	// Authenticated requires a logged-in session.
	Authenticated bool
	// Role, when set, requires the session's cached role to match.
	Role entity.Role
}

// Gate is one request interceptor. It passes by returning nil.
type Gate interface {
	Name() string
	Check(c echo.Context, p Policy) error
}

// Pipeline runs the gates in a fixed order: rate limit, CSRF,
// authentication, authorization. It is built once at startup.
type Pipeline struct {
	gates   []Gate
	metrics *metrics.Metrics
}

func NewPipeline(limit *RateLimitGate, csrf *CSRFGate, authn *AuthnGate, authz *AuthzGate, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		gates:   []Gate{limit, csrf, authn, authz},
		metrics: m,
	}
}

// Guard returns the route middleware enforcing policy.
func (p *Pipeline) Guard(policy Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, g := range p.gates {
				if err := g.Check(c, policy); err != nil {
					p.metrics.ObserveGate(g.Name(), err)
					return err
				}
			}
			return next(c)
		}
	}
}

// ---------------- Rate limit ----------------

var (
	errTooManyRequests    = customerrors.New(customerrors.KindTooManyRequests, "Too many requests, please try again later")
	errLimiterUnavailable = customerrors.New(customerrors.KindUpstreamUnavailable, "Service temporarily unavailable")
)

type RateLimitGate struct {
	limiter ratelimit.Limiter
	global  ratelimit.Rule
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewRateLimitGate(limiter ratelimit.Limiter, global ratelimit.Rule, logger *slog.Logger, m *metrics.Metrics) *RateLimitGate {
	return &RateLimitGate{limiter: limiter, global: global, logger: logger, metrics: m}
}

func (g *RateLimitGate) Name() string { return "rate_limit" }

func (g *RateLimitGate) Check(c echo.Context, p Policy) error {
	if p.Limit == nil {
		return nil
	}
	return g.allow(c, *p.Limit)
}

// Global applies the process-wide budget to every request before routing.
func (g *RateLimitGate) Global() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := g.allow(c, g.global); err != nil {
				g.metrics.ObserveGate(g.Name(), err)
				return err
			}
			return next(c)
		}
	}
}

// allow fails closed: a counter that cannot be read rejects the request.
func (g *RateLimitGate) allow(c echo.Context, rule ratelimit.Rule) error {
	d, err := g.limiter.Allow(c.Request().Context(), c.RealIP(), rule)
	if err != nil {
		g.logger.Error("rate limiter unavailable", slog.String("rule", rule.Name), slog.Any("error", err))
		return errLimiterUnavailable
	}
	h := c.Response().Header()
	h.Set("RateLimit-Limit", strconv.Itoa(rule.Max))
	h.Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("RateLimit-Reset", strconv.Itoa(secondsUntil(d.ResetAt)))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(secondsUntil(d.ResetAt)))
		return errTooManyRequests
	}
	return nil
}

func secondsUntil(t time.Time) int {
	s := int(time.Until(t).Seconds() + 0.999)
	if s < 0 {
		return 0
	}
	return s
}

// ---------------- CSRF ----------------

var errInvalidCsrf = customerrors.New(customerrors.KindInvalidCsrfToken, "Invalid CSRF token")

// CSRFVerifier checks an anti-forgery token against a session token.
type CSRFVerifier interface {
	Verify(token, sessionID string) error
}

type CSRFGate struct {
	verifier CSRFVerifier
}

func NewCSRFGate(verifier CSRFVerifier) *CSRFGate {
	return &CSRFGate{verifier: verifier}
}

func (g *CSRFGate) Name() string { return "csrf" }

func (g *CSRFGate) Check(c echo.Context, p Policy) error {
	if !p.CSRF || safeMethod(c.Request().Method) {
		return nil
	}
	session, err := reqctx.Session(c)
	if err != nil {
		return err
	}
	if session.Anonymous() {
		return errInvalidCsrf
	}
	if err := g.verifier.Verify(submittedToken(c), session.ID); err != nil {
		return errInvalidCsrf
	}
	return nil
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func submittedToken(c echo.Context) string {
	if t := c.Request().Header.Get(reqctx.CSRFHeader); t != "" {
		return t
	}
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		return c.FormValue(validation.FormTokenField)
	}
	return ""
}

// ---------------- Authentication / authorization ----------------

// SessionGuard is the part of the session manager used by the gates.
type SessionGuard interface {
	Resolve(ctx context.Context, token string) (entity.Session, error)
	RequireAuthenticated(session entity.Session) (uuid.UUID, error)
	RequireRole(session entity.Session, role entity.Role) error
}

type AuthnGate struct {
	sessions SessionGuard
}

func NewAuthnGate(sessions SessionGuard) *AuthnGate {
	return &AuthnGate{sessions: sessions}
}

func (g *AuthnGate) Name() string { return "authn" }

func (g *AuthnGate) Check(c echo.Context, p Policy) error {
	if !p.Authenticated && p.Role == "" {
		return nil
	}
	session, err := reqctx.Session(c)
	if err != nil {
		return err
	}
	_, err = g.sessions.RequireAuthenticated(session)
	return err
}

type AuthzGate struct {
	sessions SessionGuard
}

func NewAuthzGate(sessions SessionGuard) *AuthzGate {
	return &AuthzGate{sessions: sessions}
}

func (g *AuthzGate) Name() string { return "authz" }

func (g *AuthzGate) Check(c echo.Context, p Policy) error {
	if p.Role == "" {
		return nil
	}
	session, err := reqctx.Session(c)
	if err != nil {
		return err
	}
	return g.sessions.RequireRole(session, p.Role)
}
