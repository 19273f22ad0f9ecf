// Package reqctx carries per-request session state between the gate
// pipeline and the handlers.
package reqctx

import (
	"net/http"
	"time"

	"beershop/domain/entity"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	sessionKey    = "session"
	sessionErrKey = "session_error"

	// CSRFCookie is readable by scripts so pages can echo it in a header.
	CSRFCookie = "XSRF-TOKEN"
	// CSRFHeader carries the anti-forgery token on state-changing requests.
	CSRFHeader = "X-CSRF-Token"
)

// SetSession stores the resolved session, or the error that prevented
// resolving it.
func SetSession(c echo.Context, s entity.Session, err error) {
	if err != nil {
		c.Set(sessionErrKey, err)
		return
	}
	c.Set(sessionKey, s)
}

// Session returns the request's session. An anonymous session is returned
// when no cookie was sent; an error when the session store failed.
func Session(c echo.Context) (entity.Session, error) {
	if err, ok := c.Get(sessionErrKey).(error); ok && err != nil {
		return entity.Session{}, err
	}
	s, _ := c.Get(sessionKey).(entity.Session)
	return s, nil
}

// UserID returns the authenticated user. Handlers behind the
// authentication gate can rely on it being present.
func UserID(c echo.Context) (uuid.UUID, error) {
	s, err := Session(c)
	if err != nil {
		return uuid.Nil, err
	}
	if s.Anonymous() {
		return uuid.Nil, customerrors.Unauthorized("")
	}
	return *s.UserID, nil
}

// Cookies writes the session and CSRF cookies with the configured attributes.
type Cookies struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Token returns the raw session token sent by the client.
func (k Cookies) Token(c echo.Context) string {
	cookie, err := c.Cookie(k.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSession issues the session cookie: HttpOnly, SameSite=Lax and Secure
// in production.
func (k Cookies) SetSession(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     k.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(k.TTL.Seconds()),
		Expires:  time.Now().Add(k.TTL),
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCSRF issues the anti-forgery cookie next to the session cookie.
func (k Cookies) SetCSRF(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(k.TTL.Seconds()),
		HttpOnly: false,
		Secure:   k.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires both cookies.
func (k Cookies) Clear(c echo.Context) {
	for _, name := range []string{k.Name, CSRFCookie} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: name == k.Name,
			Secure:   k.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
