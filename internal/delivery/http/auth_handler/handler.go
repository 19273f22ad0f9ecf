package authHandler

import (
	"context"
	"net/http"

	"beershop/domain/entity"
	"beershop/internal/delivery/http/reqctx"
	"beershop/internal/metrics"
	"beershop/internal/usecase/auth"
	"beershop/internal/validation"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	AuthUsecase AuthUsecase
	CSRF        CSRFIssuer
	Cookies     reqctx.Cookies
	Metrics     *metrics.Metrics
}

type AuthUsecase interface {

	//RegisterUser creates the account and returns the new user with a fresh session.
	RegisterUser(ctx context.Context, in auth.RegisterInput, prevToken string, meta auth.ClientMeta) (userID uuid.UUID, session entity.Session, err error)

	//LoginUser authenticates a user and replaces the caller's session.
	LoginUser(ctx context.Context, email, password, prevToken string, meta auth.ClientMeta) (userID uuid.UUID, session entity.Session, err error)

	//LogoutSession revokes the caller's session.
	LogoutSession(ctx context.Context, token string) error
}

// CSRFIssuer signs anti-forgery tokens for a session token.
type CSRFIssuer interface {
	NewToken(sessionID string) (string, error)
}

func NewAuthHandler(authUsecase AuthUsecase, csrf CSRFIssuer, cookies reqctx.Cookies, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{AuthUsecase: authUsecase, CSRF: csrf, Cookies: cookies, Metrics: m}
}

// DTOs
type AuthResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
}

type CSRFResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	payload, err := validation.DecodeRequest(c.Request(), registerSchema)
	if err != nil {
		return err
	}
	values, err := validation.Validate(payload, registerSchema)
	if err != nil {
		return err
	}

	in := auth.RegisterInput{
		Name:     values.String("name"),
		Email:    values.String("email"),
		Password: values.String("password"),
		Address:  values.String("address"),
	}
	userID, session, err := h.AuthUsecase.RegisterUser(c.Request().Context(), in, h.Cookies.Token(c), clientMeta(c))
	if err != nil {
		return err
	}
	if err := h.startSession(c, session); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{Message: "Registration successful", UserID: userID})
}

func (h *AuthHandler) Login(c echo.Context) error {
	payload, err := validation.DecodeRequest(c.Request(), loginSchema)
	if err != nil {
		return err
	}
	values, err := validation.Validate(payload, loginSchema)
	if err != nil {
		return err
	}

	userID, session, err := h.AuthUsecase.LoginUser(c.Request().Context(),
		values.String("email"), values.String("password"), h.Cookies.Token(c), clientMeta(c))
	h.Metrics.ObserveLogin(err)
	if err != nil {
		return err
	}
	if err := h.startSession(c, session); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AuthResponse{Message: "Login successful", UserID: userID})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.AuthUsecase.LogoutSession(c.Request().Context(), h.Cookies.Token(c)); err != nil {
		return err
	}
	h.Cookies.Clear(c)
	return c.NoContent(http.StatusNoContent)
}

// CSRFToken hands the current session's anti-forgery token to scripts that
// cannot read it from the cookie.
func (h *AuthHandler) CSRFToken(c echo.Context) error {
	session, err := reqctx.Session(c)
	if err != nil {
		return err
	}
	if session.Anonymous() {
		return customerrors.Unauthorized("")
	}
	token, err := h.CSRF.NewToken(session.ID)
	if err != nil {
		return customerrors.Internal(err)
	}
	h.Cookies.SetCSRF(c, token)
	return c.JSON(http.StatusOK, CSRFResponse{CSRFToken: token})
}

func (h *AuthHandler) startSession(c echo.Context, session entity.Session) error {
	token, err := h.CSRF.NewToken(session.ID)
	if err != nil {
		return customerrors.Internal(err)
	}
	h.Cookies.SetSession(c, session.ID)
	h.Cookies.SetCSRF(c, token)
	return nil
}

func clientMeta(c echo.Context) auth.ClientMeta {
	return auth.ClientMeta{IP: c.RealIP(), UserAgent: c.Request().UserAgent()}
}
