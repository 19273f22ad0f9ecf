package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"beershop/domain/entity"
	"beershop/internal/config"
	adminHandler "beershop/internal/delivery/http/admin_handler"
	authHandler "beershop/internal/delivery/http/auth_handler"
	"beershop/internal/delivery/http/reqctx"
	shopHandler "beershop/internal/delivery/http/shop_handler"
	systemHandler "beershop/internal/delivery/http/system_handler"
	"beershop/internal/metrics"
	"beershop/internal/ratelimit"

	"github.com/labstack/echo/v4"
	middleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups the route handlers mounted by MapRoutes.
type Handlers struct {
	Auth   *authHandler.AuthHandler
	Shop   *shopHandler.ShopHandler
	Admin  *adminHandler.AdminHandler
	System *systemHandler.SystemHandler
}

// Deps is everything the router needs besides the handlers.
type Deps struct {
	Pipeline  *Pipeline
	RateLimit *RateLimitGate
	Sessions  SessionGuard
	Cookies   reqctx.Cookies
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

// Upload routes carry their own body limits.
const (
	uploadPicturePath = "/v1/admin/upload-pic"
	uploadXMLPath     = "/v1/admin/new-beer-xml"
)

func MapRoutes(e *echo.Echo, h Handlers, d Deps, cfg config.Config) {
	logger := d.Logger

	if cfg.Server.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	// Pre-routing: applies to every request, matched or not.
	e.Pre(middleware.Recover())
	e.Pre(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            hstsMaxAge(cfg),
		ContentSecurityPolicy: "default-src 'self'; img-src 'self'; object-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "same-origin",
	}))
	e.Pre(d.RateLimit.Global())

	// Middlewares
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:   middleware.DefaultSkipper,
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Error("HTTP request error",
					"method", v.Method,
					"uri", redactQuery(v.URI),
					"status", v.Status,
					"error", v.Error,
				)
				return nil
			}

			logger.Info("HTTP request",
				"method", v.Method,
				"uri", redactQuery(v.URI),
				"status", v.Status,
			)

			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{echo.HeaderContentType, reqctx.CSRFHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Path()
			return p == uploadPicturePath || p == uploadXMLPath
		},
		Limit: cfg.UploadConfig.MaxJSONBytes,
	}))
	e.Use(SessionMiddleware(d.Sessions, d.Cookies))
	e.Use(MetricsMiddleware(d.Metrics))

	authLimit := rule("auth", cfg.RateLimiterConfig.Auth)
	uploadLimit := rule("upload", cfg.RateLimiterConfig.Upload)

	var (
		public   = Policy{}
		login    = Policy{Limit: &authLimit}
		user     = Policy{Authenticated: true}
		protect  = Policy{CSRF: true, Authenticated: true}
		admin    = Policy{CSRF: true, Role: entity.RoleAdmin}
		upload   = Policy{Limit: &uploadLimit, CSRF: true, Role: entity.RoleAdmin}
		operator = Policy{Role: entity.RoleAdmin}
		guard    = d.Pipeline.Guard
		imgLimit = middleware.BodyLimit(strconv.FormatInt(cfg.UploadConfig.MaxImageBytes, 10))
		xmlLimit = middleware.BodyLimit(strconv.FormatInt(cfg.UploadConfig.MaxXMLBytes, 10))
	)

	//routes
	e.GET("/", h.Shop.LoginPage, guard(public))
	e.GET("/register", h.Shop.RegisterPage, guard(public))
	e.POST("/register", h.Auth.Register, guard(login))
	e.POST("/login", h.Auth.Login, guard(login))
	e.POST("/logout", h.Auth.Logout, guard(public))
	e.GET("/profile", h.Shop.Profile, guard(user))
	e.GET("/beer", h.Shop.Beer, guard(user))

	e.GET("/healthz", h.System.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})), guard(operator))

	v1 := e.Group("/v1")
	v1.GET("/csrf-token", h.Auth.CSRFToken, guard(user))
	v1.GET("/order", h.Shop.Orders, guard(protect))
	v1.GET("/beer-pic", h.Shop.BeerPicture, guard(protect))
	v1.GET("/search/:filter/:query", h.Shop.Search, guard(protect))
	v1.POST("/beer/:id/love", h.Shop.Love, guard(protect))
	v1.GET("/status/:brand", h.System.Status, guard(protect))
	v1.GET("/redirect", h.System.Redirect, guard(protect))
	v1.GET("/test", h.System.Test, guard(protect))
	v1.POST("/init", h.Admin.Init, guard(admin))

	adm := v1.Group("/admin")
	adm.POST("/new-beer", h.Admin.NewBeer, guard(admin))
	adm.POST("/upload-pic", h.Admin.UploadPicture, imgLimit, guard(upload))
	adm.POST("/new-beer-xml", h.Admin.NewBeerFromXML, xmlLimit, guard(upload))

	logger.Info("HTTP routes mapped successfully")
}

func rule(name string, l config.Limit) ratelimit.Rule {
	return ratelimit.Rule{Name: name, Max: l.Max, Window: l.Window}
}

// GlobalRule builds the process-wide budget from configuration.
func GlobalRule(cfg config.RateLimiterConfig) ratelimit.Rule {
	return rule("global", cfg.Global)
}

func hstsMaxAge(cfg config.Config) int {
	if cfg.IsProduction() {
		return 31536000
	}
	return 0
}

// redactQuery drops query strings from logged URIs; they may carry
// outbound URLs or echoed messages.
func redactQuery(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		return uri[:i]
	}
	return uri
}
