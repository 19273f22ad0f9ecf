package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"beershop/domain/entity"
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
	"beershop/internal/storage/database/databasetest"
	authUs "beershop/internal/usecase/auth"
	beerUs "beershop/internal/usecase/beer"
	errHandler "beershop/pkg/error_handler"
	"beershop/pkg/jwt"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testPassword = "secret-pass"

// flakyStore fails session lookups on demand.
type flakyStore struct {
	*authRepo.AuthRepo
	fail atomic.Bool
}

func (s *flakyStore) GetSession(ctx context.Context, digest string) (entity.Session, error) {
	if s.fail.Load() {
		return entity.Session{}, errors.New("connection refused")
	}
	return s.AuthRepo.GetSession(ctx, digest)
}

type countingLookup struct {
	calls atomic.Int32
	hosts map[string][]netip.Addr
}

func (l *countingLookup) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	l.calls.Add(1)
	if addrs, ok := l.hosts[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

type testApp struct {
	e      *echo.Echo
	db     *database.DB
	store  *flakyStore
	lookup *countingLookup
	nextIP atomic.Int32
}

func testConfig() config.Config {
	return config.Config{
		Env:    "test",
		Server: config.Server{AllowedOrigins: []string{"https://shop.test"}},
		RateLimiterConfig: config.RateLimiterConfig{
			Global: config.Limit{Max: 1000, Window: time.Minute},
			Auth:   config.Limit{Max: 5, Window: time.Hour},
			Upload: config.Limit{Max: 5, Window: time.Minute},
		},
		UploadConfig: config.UploadConfig{
			MaxImageBytes: 2 << 20,
			MaxXMLBytes:   1 << 20,
			MaxJSONBytes:  "50K",
		},
		OutboundConfig: config.OutboundConfig{
			Timeout:         time.Second,
			MaxBodyBytes:    20 << 10,
			StatusURL:       "https://status.example.com/",
			StatusBodyBytes: 10 << 10,
		},
		RedirectConfig: config.RedirectConfig{AllowedHosts: []string{"www.heineken.com"}},
		SessionConfig:  config.SessionConfig{Secret: "test-secret", TTL: time.Hour, CookieName: "sessionID"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	db := databasetest.New(t)
	users := authRepo.NewAuthRepo(db.Gorm, m)
	store := &flakyStore{AuthRepo: users}
	sessions := authUs.NewSessionManager(store, cfg.SessionConfig.TTL)
	hasher, err := authUs.NewPasswordHasher(authUs.MinCost)
	require.NoError(t, err)
	authUsecase := authUs.NewAuthUsecase(users, hasher, sessions, logger)

	assets, err := resolver.NewAssetStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	beerUsecase := beerUs.NewBeerUsecase(beerRepo.NewBeerRepo(db.Gorm, m), assets, logger)

	lookup := &countingLookup{hosts: map[string][]netip.Addr{
		"metadata.internal": {netip.MustParseAddr("169.254.169.254")},
		"intranet.example":  {netip.MustParseAddr("93.184.216.34"), netip.MustParseAddr("10.0.0.5")},
	}}
	fetcher := resolver.NewFetcher(resolver.NewOutboundResolver(lookup), time.Second, cfg.OutboundConfig.MaxBodyBytes)

	renderer, err := view.NewRenderer("")
	require.NoError(t, err)
	csrf := jwt.NewCSRFManager(cfg.SessionConfig.Secret, cfg.SessionConfig.TTL)
	cookies := reqctx.Cookies{Name: cfg.SessionConfig.CookieName, TTL: sessions.TTL()}

	e := echo.New()
	e.HTTPErrorHandler = errHandler.HandleError
	e.Renderer = renderer

	limit := routes.NewRateLimitGate(ratelimit.NewMemoryLimiter(), routes.GlobalRule(cfg.RateLimiterConfig), logger, m)
	pipeline := routes.NewPipeline(limit, routes.NewCSRFGate(csrf), routes.NewAuthnGate(sessions), routes.NewAuthzGate(sessions), m)

	routes.MapRoutes(e, routes.Handlers{
		Auth:   authHandler.NewAuthHandler(authUsecase, csrf, cookies, m),
		Shop:   shopHandler.NewShopHandler(beerUsecase, authUsecase, csrf, renderer),
		Admin:  adminHandler.NewAdminHandler(beerUsecase, cfg.UploadConfig.MaxImageBytes, cfg.UploadConfig.MaxXMLBytes),
		System: systemHandler.NewSystemHandler(fetcher, resolver.NewRedirectAllowList(cfg.RedirectConfig.AllowedHosts), db, cfg.OutboundConfig, m, logger),
	}, routes.Deps{
		Pipeline:  pipeline,
		RateLimit: limit,
		Sessions:  sessions,
		Cookies:   cookies,
		Metrics:   m,
		Gatherer:  registry,
		Logger:    logger,
	}, cfg)

	return &testApp{e: e, db: db, store: store, lookup: lookup}
}

// client is a browser stand-in with its own address and cookie jar.
type client struct {
	t       *testing.T
	app     *testApp
	ip      string
	cookies map[string]*http.Cookie
}

func (a *testApp) client(t *testing.T) *client {
	n := a.nextIP.Add(1)
	return &client{
		t:       t,
		app:     a,
		ip:      "203.0.113." + strconv.Itoa(int(n)),
		cookies: map[string]*http.Cookie{},
	}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	req.RemoteAddr = c.ip + ":40000"
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.app.e.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (c *client) postJSON(target, body string, withCSRF bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if withCSRF {
		req.Header.Set(reqctx.CSRFHeader, c.csrfToken())
	}
	return c.do(req)
}

func (c *client) csrfToken() string {
	if ck, ok := c.cookies[reqctx.CSRFCookie]; ok {
		return ck.Value
	}
	return ""
}

func (c *client) register(email string) {
	c.t.Helper()
	rec := c.postJSON("/register", `{"name":"Tester","email":"`+email+`","password":"`+testPassword+`"}`, false)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func (c *client) login(email string) *httptest.ResponseRecorder {
	return c.postJSON("/login", `{"email":"`+email+`","password":"`+testPassword+`"}`, false)
}

// admin registers email, promotes it and logs in again so the session
// caches the new role.
func (a *testApp) admin(t *testing.T, email string) *client {
	t.Helper()
	c := a.client(t)
	c.register(email)
	require.NoError(t, a.db.Gorm.Model(&entity.User{}).Where("email = ?", email).Update("role", entity.RoleAdmin).Error)
	rec := c.login(email)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return c
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
