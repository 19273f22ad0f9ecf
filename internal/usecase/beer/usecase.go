package beer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"beershop/domain/entity"
	"beershop/internal/resolver"
	beerRepo "beershop/internal/storage/database/beer"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
)

// BeerRepo is the persistence the catalogue needs.
type BeerRepo interface {
	Create(ctx context.Context, beer *entity.Beer) error
	CreateBatch(ctx context.Context, beers []entity.Beer) error
	ListOrders(ctx context.Context) ([]beerRepo.OrderLine, error)
	Search(ctx context.Context, filter beerRepo.Filter, value any) ([]entity.Beer, error)
	List(ctx context.Context) ([]entity.Beer, error)
	Get(ctx context.Context, id uuid.UUID) (entity.Beer, error)
	Loves(ctx context.Context, beerID, userID uuid.UUID) (bool, error)
	AddLove(ctx context.Context, beerID, userID uuid.UUID) error
}

type BeerUsecase struct {
	beers  BeerRepo
	assets *resolver.AssetStore
	logger *slog.Logger
}

func NewBeerUsecase(beers BeerRepo, assets *resolver.AssetStore, logger *slog.Logger) *BeerUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeerUsecase{beers: beers, assets: assets, logger: logger}
}

// NewBeer is a validated beer payload.
type NewBeer struct {
	Name     string
	Price    float64
	Picture  string
	Currency entity.Currency
	Stock    entity.Stock
}

func (u *BeerUsecase) CreateBeer(ctx context.Context, in NewBeer) (entity.Beer, error) {
	beer := toEntity(in)
	if err := u.beers.Create(ctx, &beer); err != nil {
		return entity.Beer{}, customerrors.Internal(err)
	}
	u.logger.Info("beer created", slog.String("beer_id", beer.ID.String()))
	return beer, nil
}

// InitCatalogue stores a batch of beers atomically and returns how many
// were added.
func (u *BeerUsecase) InitCatalogue(ctx context.Context, items []NewBeer) (int, error) {
	beers := make([]entity.Beer, 0, len(items))
	for _, in := range items {
		beers = append(beers, toEntity(in))
	}
	if err := u.beers.CreateBatch(ctx, beers); err != nil {
		return 0, customerrors.Internal(err)
	}
	return len(beers), nil
}

// CreateFromXML parses an uploaded XML document and stores the beer it
// describes. validate receives the decoded fields before anything is stored.
func (u *BeerUsecase) CreateFromXML(ctx context.Context, data []byte, validate func(name, price string) (NewBeer, error)) (entity.Beer, error) {
	var doc resolver.BeerDocument
	if err := resolver.DecodeXML(data, &doc); err != nil {
		return entity.Beer{}, err
	}
	in, err := validate(strings.TrimSpace(doc.Name), strings.TrimSpace(doc.Price))
	if err != nil {
		return entity.Beer{}, err
	}
	return u.CreateBeer(ctx, in)
}

func (u *BeerUsecase) Orders(ctx context.Context) ([]beerRepo.OrderLine, error) {
	lines, err := u.beers.ListOrders(ctx)
	if err != nil {
		return nil, customerrors.Internal(err)
	}
	return lines, nil
}

func (u *BeerUsecase) Catalogue(ctx context.Context) ([]entity.Beer, error) {
	beers, err := u.beers.List(ctx)
	if err != nil {
		return nil, customerrors.Internal(err)
	}
	return beers, nil
}

// Search parses query according to filter and matches beers on it.
func (u *BeerUsecase) Search(ctx context.Context, filter, query string) ([]entity.Beer, error) {
	f := beerRepo.Filter(filter)
	var value any
	switch f {
	case beerRepo.FilterID:
		id, err := uuid.Parse(query)
		if err != nil {
			return []entity.Beer{}, nil
		}
		value = id
	case beerRepo.FilterName:
		value = query
	case beerRepo.FilterPrice:
		p, err := strconv.ParseFloat(query, 64)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, customerrors.Validation("Invalid query",
				customerrors.FieldError{Field: "query", Reason: "must be a number"})
		}
		value = p
	default:
		return nil, customerrors.Validation("Invalid filter")
	}

	beers, err := u.beers.Search(ctx, f, value)
	if err != nil {
		if customerrors.KindOf(err) == customerrors.KindValidation {
			return nil, err
		}
		return nil, customerrors.New(customerrors.KindInternal, "Search failed")
	}
	return beers, nil
}

// BeerView is a beer page as seen by one user.
type BeerView struct {
	Beer  entity.Beer
	Loves bool
}

func (u *BeerUsecase) View(ctx context.Context, beerID, userID uuid.UUID) (BeerView, error) {
	beer, err := u.beers.Get(ctx, beerID)
	if errors.Is(err, customerrors.ErrNotFound) {
		return BeerView{}, customerrors.NotFound("Beer not found")
	}
	if err != nil {
		return BeerView{}, customerrors.Internal(err)
	}
	loves, err := u.beers.Loves(ctx, beerID, userID)
	if err != nil {
		return BeerView{}, customerrors.Internal(err)
	}
	return BeerView{Beer: beer, Loves: loves}, nil
}

func (u *BeerUsecase) Love(ctx context.Context, beerID, userID uuid.UUID) error {
	err := u.beers.AddLove(ctx, beerID, userID)
	if errors.Is(err, customerrors.ErrNotFound) {
		return customerrors.NotFound("Beer not found")
	}
	if err != nil {
		return customerrors.Internal(err)
	}
	return nil
}

// UploadPicture stores an image under a server-generated name. Only the
// extension of originalName is kept, and the content must sniff as that
// image type.
func (u *BeerUsecase) UploadPicture(originalName string, content io.Reader) (entity.UploadedAsset, error) {
	storedName, err := u.assets.StoredName(originalName)
	if err != nil {
		return entity.UploadedAsset{}, err
	}
	ext, err := u.assets.Extension(storedName)
	if err != nil {
		return entity.UploadedAsset{}, err
	}
	contentType, replay, err := resolver.SniffImage(content, ext)
	if err != nil {
		return entity.UploadedAsset{}, err
	}
	n, err := u.assets.Save(storedName, replay)
	if err != nil {
		if customerrors.KindOf(err) != customerrors.KindInternal {
			return entity.UploadedAsset{}, err
		}
		return entity.UploadedAsset{}, customerrors.Internal(err)
	}
	return entity.UploadedAsset{StoredName: storedName, ContentType: contentType, ByteSize: n}, nil
}

// Picture returns stored image bytes and their content type.
func (u *BeerUsecase) Picture(name string) ([]byte, string, error) {
	data, err := u.assets.Read(name)
	if err != nil {
		if customerrors.KindOf(err) != customerrors.KindInternal {
			return nil, "", err
		}
		return nil, "", customerrors.Internal(err)
	}
	ext, _ := u.assets.Extension(name)
	contentType, err := resolver.VerifyImage(data, ext)
	if err != nil {
		return nil, "", customerrors.Forbidden("Access denied")
	}
	return data, contentType, nil
}

func toEntity(in NewBeer) entity.Beer {
	return entity.Beer{
		Name:     in.Name,
		Price:    math.Round(in.Price*100) / 100,
		Picture:  in.Picture,
		Currency: in.Currency,
		Stock:    in.Stock,
	}
}
