package adminHandler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"beershop/domain/entity"
	"beershop/internal/usecase/beer"
	"beershop/internal/validation"
	"beershop/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

// UploadField is the multipart field carrying uploaded files.
const UploadField = "file"

type AdminHandler struct {
	Beers       BeerUsecase
	MaxImage    int64
	MaxDocument int64
}

type BeerUsecase interface {
	CreateBeer(ctx context.Context, in beer.NewBeer) (entity.Beer, error)
	InitCatalogue(ctx context.Context, items []beer.NewBeer) (int, error)
	CreateFromXML(ctx context.Context, data []byte, validate func(name, price string) (beer.NewBeer, error)) (entity.Beer, error)
	UploadPicture(originalName string, content io.Reader) (entity.UploadedAsset, error)
}

func NewAdminHandler(beers BeerUsecase, maxImage, maxDocument int64) *AdminHandler {
	return &AdminHandler{Beers: beers, MaxImage: maxImage, MaxDocument: maxDocument}
}

type InitResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

func (h *AdminHandler) NewBeer(c echo.Context) error {
	payload, err := validation.DecodeRequest(c.Request(), newBeerSchema)
	if err != nil {
		return err
	}
	values, err := validation.Validate(payload, newBeerSchema)
	if err != nil {
		return err
	}
	created, err := h.Beers.CreateBeer(c.Request().Context(), beer.NewBeer{
		Name:     values.String("name"),
		Price:    values.Float("price"),
		Picture:  values.String("picture"),
		Currency: entity.Currency(values.String("currency")),
		Stock:    entity.Stock(values.String("stock")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHandler) UploadPicture(c echo.Context) error {
	file, name, err := h.openUpload(c, h.MaxImage)
	if err != nil {
		return err
	}
	defer file.Close()

	asset, err := h.Beers.UploadPicture(name, io.LimitReader(file, h.MaxImage))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, asset)
}

func (h *AdminHandler) NewBeerFromXML(c echo.Context) error {
	file, _, err := h.openUpload(c, h.MaxDocument)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.MaxDocument+1))
	if err != nil {
		return customerrors.Validation("Invalid XML file")
	}
	if int64(len(data)) > h.MaxDocument {
		return customerrors.Validation("File too large")
	}

	created, err := h.Beers.CreateFromXML(c.Request().Context(), data, validateDocument)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *AdminHandler) Init(c echo.Context) error {
	payload, err := validation.DecodeJSON(c.Request().Body)
	if err != nil {
		return err
	}
	values, err := validation.Validate(payload, initSchema)
	if err != nil {
		return err
	}

	items := values.List("beers")
	batch := make([]beer.NewBeer, 0, len(items))
	for _, item := range items {
		batch = append(batch, beer.NewBeer{
			Name:  item.String("name"),
			Price: item.Float("price"),
		})
	}
	n, err := h.Beers.InitCatalogue(c.Request().Context(), batch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, InitResponse{Message: "Initialization completed securely", Count: n})
}

type multipartFile interface {
	io.Reader
	io.Closer
}

func (h *AdminHandler) openUpload(c echo.Context, limit int64) (multipartFile, string, error) {
	header, err := c.FormFile(UploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", customerrors.Validation("No file uploaded")
		}
		return nil, "", customerrors.Validation("Invalid upload")
	}
	if header.Size > limit {
		return nil, "", customerrors.Validation("File too large")
	}
	file, err := header.Open()
	if err != nil {
		return nil, "", customerrors.Internal(err)
	}
	return file, header.Filename, nil
}

func validateDocument(name, price string) (beer.NewBeer, error) {
	values, err := validation.ValidateStrings(map[string]string{"name": name, "price": price}, xmlBeerSchema)
	if err != nil {
		return beer.NewBeer{}, err
	}
	return beer.NewBeer{Name: values.String("name"), Price: values.Float("price")}, nil
}
