package beer

import (
	"context"
	"time"

	"beershop/domain/entity"
	"beershop/internal/metrics"
	"beershop/internal/storage/database"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter names a column the search endpoint may match on.
type Filter string

const (
	FilterID    Filter = "id"
	FilterName  Filter = "name"
	FilterPrice Filter = "price"
)

// column maps a filter onto a fixed column. The filter string itself never
// reaches the query text.
func (f Filter) column() (string, bool) {
	switch f {
	case FilterID:
		return "id", true
	case FilterName:
		return "name", true
	case FilterPrice:
		return "price", true
	}
	return "", false
}

// OrderLine is a beer as exposed by the order listing: no picture, no PII.
type OrderLine struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Price    float64         `json:"price"`
	Currency entity.Currency `json:"currency"`
	Users    []OrderUser     `json:"users"`
}

// OrderUser is the minimal user projection attached to an order line.
type OrderUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type BeerRepo struct {
	db      *gorm.DB
	Metrics *metrics.Metrics
}

func NewBeerRepo(db *gorm.DB, metrics *metrics.Metrics) *BeerRepo {
	return &BeerRepo{
		db:      db,
		Metrics: metrics,
	}
}

func (r *BeerRepo) Create(ctx context.Context, beer *entity.Beer) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_beer", start, err)
	}(time.Now())

	prepare(beer)
	err = database.MapError(r.db.WithContext(ctx).Omit("Users").Create(beer).Error)
	return err
}

// CreateBatch inserts all beers or none.
func (r *BeerRepo) CreateBatch(ctx context.Context, beers []entity.Beer) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_beer_batch", start, err)
	}(time.Now())

	if len(beers) == 0 {
		return nil
	}
	for i := range beers {
		prepare(&beers[i])
	}
	err = database.MapError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Users").CreateInBatches(&beers, 50).Error
	}))
	return err
}

// ListOrders returns every beer with the id and name of the users who love it.
func (r *BeerRepo) ListOrders(ctx context.Context) (lines []OrderLine, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_orders", start, err)
	}(time.Now())

	var beers []entity.Beer
	err = r.db.WithContext(ctx).
		Select("id", "name", "price", "currency").
		Preload("Users", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name") }).
		Order("name").
		Find(&beers).Error
	if err != nil {
		return nil, err
	}

	lines = make([]OrderLine, 0, len(beers))
	for _, b := range beers {
		users := make([]OrderUser, 0, len(b.Users))
		for _, u := range b.Users {
			users = append(users, OrderUser{ID: u.ID, Name: u.Name})
		}
		lines = append(lines, OrderLine{ID: b.ID, Name: b.Name, Price: b.Price, Currency: b.Currency, Users: users})
	}
	return lines, nil
}

// Search matches beers whose filter column equals value. The value is bound
// as a query parameter.
func (r *BeerRepo) Search(ctx context.Context, filter Filter, value any) (beers []entity.Beer, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("search_beers", start, err)
	}(time.Now())

	col, ok := filter.column()
	if !ok {
		err = customerrors.Validation("Invalid filter")
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Select("id", "name", "price", "currency").
		Where(clause.Eq{Column: clause.Column{Name: col}, Value: value}).
		Order("name").
		Find(&beers).Error
	if beers == nil {
		beers = []entity.Beer{}
	}
	return beers, err
}

// List returns the whole catalogue.
func (r *BeerRepo) List(ctx context.Context) (beers []entity.Beer, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_beers", start, err)
	}(time.Now())

	err = r.db.WithContext(ctx).Order("name").Find(&beers).Error
	return beers, err
}

// Get returns a beer with the users who love it.
func (r *BeerRepo) Get(ctx context.Context, id uuid.UUID) (beer entity.Beer, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_beer", start, err)
	}(time.Now())

	err = database.MapError(r.db.WithContext(ctx).
		Preload("Users", func(tx *gorm.DB) *gorm.DB { return tx.Select("id", "name") }).
		Where("id = ?", id).
		Take(&beer).Error)
	return beer, err
}

// Loves reports whether the user is linked to the beer.
func (r *BeerRepo) Loves(ctx context.Context, beerID, userID uuid.UUID) (loves bool, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_love", start, err)
	}(time.Now())

	var count int64
	err = r.db.WithContext(ctx).Table("beer_users").
		Where("beer_id = ? AND user_id = ?", beerID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddLove links the user to the beer. Repeating it is a no-op.
func (r *BeerRepo) AddLove(ctx context.Context, beerID, userID uuid.UUID) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_love", start, err)
	}(time.Now())

	var exists int64
	err = r.db.WithContext(ctx).Model(&entity.Beer{}).Where("id = ?", beerID).Count(&exists).Error
	if err != nil {
		return err
	}
	if exists == 0 {
		err = customerrors.ErrNotFound
		return err
	}

	err = r.db.WithContext(ctx).Table("beer_users").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(map[string]any{"beer_id": beerID, "user_id": userID}).Error
	err = database.MapError(err)
	return err
}

func prepare(b *entity.Beer) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Currency == "" {
		b.Currency = entity.CurrencyUSD
	}
	if b.Stock == "" {
		b.Stock = entity.StockPlenty
	}
}
