package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"beershop/internal/config"
	routes "beershop/internal/delivery/http"
	adminHandler "beershop/internal/delivery/http/admin_handler"
	authHandler "beershop/internal/delivery/http/auth_handler"
	"beershop/internal/delivery/http/reqctx"
	shopHandler "beershop/internal/delivery/http/shop_handler"
	systemHandler "beershop/internal/delivery/http/system_handler"
	"beershop/internal/delivery/http/view"
	"beershop/internal/metrics"
	"beershop/internal/ratelimit"
	"beershop/internal/resolver"
	"beershop/internal/storage/database"
	authRepo "beershop/internal/storage/database/auth"
	beerRepo "beershop/internal/storage/database/beer"
	authUs "beershop/internal/usecase/auth"
	beerUs "beershop/internal/usecase/beer"
	errHandler "beershop/pkg/error_handler"
	"beershop/pkg/jwt"

	"github.com/labstack/echo/v4"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	config := config.LoadConfig()
	logger := setupLogger(config)
	slog.SetDefault(logger)
	logger.Info("Application started", "env", config.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize database connection
	db, err := database.Open(ctx, config.DatabaseConfig, logger)
	if err != nil {
		logger.Error("Failed to connect to the database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to the database successfully", "dialect", db.Dialect)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)

	limiter, closeLimiter, err := setupLimiter(ctx, config.RedisConfig, logger)
	if err != nil {
		logger.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeLimiter()

	assets, err := resolver.NewAssetStore(config.UploadConfig.Dir)
	if err != nil {
		logger.Error("Failed to prepare upload directory", "error", err)
		os.Exit(1)
	}
	renderer, err := view.NewRenderer(config.Server.TemplatesDir)
	if err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	csrfManager := jwt.NewCSRFManager(config.SessionConfig.Secret, config.SessionConfig.TTL)
	hasher, err := authUs.NewPasswordHasher(authUs.DefaultCost)
	if err != nil {
		logger.Error("Failed to configure password hashing", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	users := authRepo.NewAuthRepo(db.Gorm, m)
	beers := beerRepo.NewBeerRepo(db.Gorm, m)

	// Initialize use cases
	sessions := authUs.NewSessionManager(users, config.SessionConfig.TTL)
	authUsecase := authUs.NewAuthUsecase(users, hasher, sessions, logger)
	beerUsecase := beerUs.NewBeerUsecase(beers, assets, logger)

	outbound := resolver.NewFetcher(
		resolver.NewOutboundResolver(nil),
		config.OutboundConfig.Timeout,
		config.OutboundConfig.MaxBodyBytes,
	)
	cookies := reqctx.Cookies{
		Name:   config.SessionConfig.CookieName,
		Secure: config.IsProduction(),
		TTL:    sessions.TTL(),
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errHandler.HandleError
	e.Renderer = renderer

	rateLimit := routes.NewRateLimitGate(limiter, routes.GlobalRule(config.RateLimiterConfig), logger, m)
	pipeline := routes.NewPipeline(
		rateLimit,
		routes.NewCSRFGate(csrfManager),
		routes.NewAuthnGate(sessions),
		routes.NewAuthzGate(sessions),
		m,
	)

	// Initialize handlers and map routes
	routes.MapRoutes(e, routes.Handlers{
		Auth:   authHandler.NewAuthHandler(authUsecase, csrfManager, cookies, m),
		Shop:   shopHandler.NewShopHandler(beerUsecase, authUsecase, csrfManager, renderer),
		Admin:  adminHandler.NewAdminHandler(beerUsecase, config.UploadConfig.MaxImageBytes, config.UploadConfig.MaxXMLBytes),
		System: systemHandler.NewSystemHandler(outbound, resolver.NewRedirectAllowList(config.RedirectConfig.AllowedHosts), db, config.OutboundConfig, m, logger),
	}, routes.Deps{
		Pipeline:  pipeline,
		RateLimit: rateLimit,
		Sessions:  sessions,
		Cookies:   cookies,
		Metrics:   m,
		Gatherer:  registry,
		Logger:    logger,
	}, config)

	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadTimeout:       config.Server.Timeout,
		ReadHeaderTimeout: config.Server.Timeout,
		WriteTimeout:      config.Server.Timeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Expired sessions are dropped lazily on lookup; the sweeper catches
	// the ones nobody asks for again.
	g.Go(func() error {
		ticker := time.NewTicker(sessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case now := <-ticker.C:
				n, err := users.DeleteExpiredSessions(gCtx, now.UTC())
				if err != nil {
					logger.Warn("session sweep failed", slog.Any("error", err))
					continue
				}
				if n > 0 {
					logger.Info("expired sessions removed", slog.Int64("count", n))
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server...")

		shutDownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutDownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
			return err
		}
		logger.Info("Server stopped gracefully")
		return nil
	})

	// Wait for all goroutines to finish and check for errors
	if err := g.Wait(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Application stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// setupLimiter returns the Redis-backed limiter when Redis is enabled, the
// in-process one otherwise.
func setupLimiter(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	if !cfg.Enabled {
		logger.Warn("redis disabled, rate limits are per process")
		return ratelimit.NewMemoryLimiter(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return ratelimit.NewRedisLimiter(client), func() { _ = client.Close() }, nil
}

// setupLogger configures the logger based on the environment (production, development, local).
func setupLogger(cfg config.Config) *slog.Logger {
	level := parseLevel(cfg.LoggerConfig.Level)
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !term.IsTerminal(int(os.Stdout.Fd())),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" && a.Value.Kind() == slog.KindAny {
				if err, ok := a.Value.Any().(error); ok {
					return tint.Err(err)
				}
			}
			return a
		},
	}))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
