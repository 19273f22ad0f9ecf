package shopHandler

import (
	"context"
	"net/http"
	"strings"

	"beershop/domain/entity"
	"beershop/internal/delivery/http/reqctx"
	"beershop/internal/delivery/http/view"
	beerRepo "beershop/internal/storage/database/beer"
	"beershop/internal/usecase/beer"
	"beershop/internal/validation"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ShopHandler struct {
	Beers    BeerUsecase
	Profiles ProfileReader
	CSRF     CSRFIssuer
	Messages MessageSanitizer
}

type BeerUsecase interface {
	Orders(ctx context.Context) ([]beerRepo.OrderLine, error)
	Catalogue(ctx context.Context) ([]entity.Beer, error)
	Search(ctx context.Context, filter, query string) ([]entity.Beer, error)
	View(ctx context.Context, beerID, userID uuid.UUID) (beer.BeerView, error)
	Love(ctx context.Context, beerID, userID uuid.UUID) error
	Picture(name string) ([]byte, string, error)
}

type ProfileReader interface {
	Profile(ctx context.Context, userID uuid.UUID) (entity.User, error)
}

type CSRFIssuer interface {
	NewToken(sessionID string) (string, error)
}

// MessageSanitizer cleans free text echoed back on a page.
type MessageSanitizer interface {
	Message(raw, fallback string) string
}

func NewShopHandler(beers BeerUsecase, profiles ProfileReader, csrf CSRFIssuer, messages MessageSanitizer) *ShopHandler {
	return &ShopHandler{Beers: beers, Profiles: profiles, CSRF: csrf, Messages: messages}
}

// ---------------- Pages ----------------

func (h *ShopHandler) LoginPage(c echo.Context) error {
	msg := h.Messages.Message(c.QueryParam("message"), "Please log in to continue")
	return c.Render(http.StatusOK, view.PageLogin, view.FormPage{Message: msg})
}

func (h *ShopHandler) RegisterPage(c echo.Context) error {
	msg := h.Messages.Message(c.QueryParam("message"), "Please register to continue")
	return c.Render(http.StatusOK, view.PageRegister, view.FormPage{Message: msg})
}

func (h *ShopHandler) Profile(c echo.Context) error {
	userID, err := reqctx.UserID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, err := h.Profiles.Profile(ctx, userID)
	if err != nil {
		return err
	}
	beers, err := h.Beers.Catalogue(ctx)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, view.PageProfile, view.ProfilePage{User: user, Beers: beers})
}

func (h *ShopHandler) Beer(c echo.Context) error {
	userID, err := reqctx.UserID(c)
	if err != nil {
		return err
	}
	values, err := validation.ValidateStrings(map[string]string{
		"id":           c.QueryParam("id"),
		"relationship": c.QueryParam("relationship"),
	}, beerPageSchema)
	if err != nil {
		return err
	}
	beerID, err := uuid.Parse(values.String("id"))
	if err != nil {
		return customerrors.Validation("Invalid beer id")
	}

	v, err := h.Beers.View(c.Request().Context(), beerID, userID)
	if err != nil {
		return err
	}
	fallback := "..."
	if v.Loves {
		fallback = "You Love THIS BEER!!"
	}
	page := view.BeerPage{
		Beer:    v.Beer,
		Loves:   v.Loves,
		Message: h.Messages.Message(values.String("relationship"), fallback),
	}
	if !v.Loves {
		session, err := reqctx.Session(c)
		if err != nil {
			return err
		}
		if page.CSRFToken, err = h.CSRF.NewToken(session.ID); err != nil {
			return customerrors.Internal(err)
		}
	}
	return c.Render(http.StatusOK, view.PageBeer, page)
}

// ---------------- API ----------------

func (h *ShopHandler) Orders(c echo.Context) error {
	lines, err := h.Beers.Orders(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lines)
}

func (h *ShopHandler) Search(c echo.Context) error {
	values, err := validation.ValidateStrings(map[string]string{
		"filter": c.Param("filter"),
		"query":  c.Param("query"),
	}, searchSchema)
	if err != nil {
		return err
	}
	beers, err := h.Beers.Search(c.Request().Context(), values.String("filter"), values.String("query"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, beers)
}

// BeerPicture streams a stored image. The name is resolved inside the
// upload root and the bytes are re-checked before they are served.
func (h *ShopHandler) BeerPicture(c echo.Context) error {
	name := c.QueryParam("picture")
	if name == "" {
		return customerrors.Validation("Picture parameter is required")
	}
	data, contentType, err := h.Beers.Picture(name)
	if err != nil {
		return err
	}
	c.Response().Header().Set("X-Content-Type-Options", "nosniff")
	return c.Blob(http.StatusOK, contentType, data)
}

func (h *ShopHandler) Love(c echo.Context) error {
	userID, err := reqctx.UserID(c)
	if err != nil {
		return err
	}
	beerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return customerrors.Validation("Invalid beer id")
	}
	if err := h.Beers.Love(c.Request().Context(), beerID, userID); err != nil {
		return err
	}
	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMETextHTML) {
		return c.Redirect(http.StatusSeeOther, "/beer?id="+beerID.String())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Beer loved"})
}
