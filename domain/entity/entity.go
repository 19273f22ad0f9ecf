package entity

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the authorization level cached on a session at login time.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleBlocked Role = "blocked"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleBlocked:
		return true
	}
	return false
}

// User represents a registered shop customer. Users are soft-deleted only.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;not null" json:"-"`
	Name         string         `json:"name"`
	Address      string         `json:"-"`
	ProfilePic   string         `json:"profile_pic,omitempty"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Role         Role           `gorm:"not null;default:user" json:"-"`
	Beers        []Beer         `gorm:"many2many:beer_users;joinForeignKey:UserID;joinReferences:BeerID" json:"beers,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"-"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Currency of a beer price.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyILS Currency = "ILS"
	CurrencyEUR Currency = "EUR"
)

// Stock level of a beer.
type Stock string

const (
	StockPlenty Stock = "plenty"
	StockLittle Stock = "little"
	StockOut    Stock = "out"
)

// Beer is a catalogue item. Users who "love" a beer are linked through beer_users.
type Beer struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Picture   string         `json:"picture,omitempty"`
	Price     float64        `gorm:"type:numeric(10,2);not null" json:"price"`
	Currency  Currency       `json:"currency,omitempty"`
	Stock     Stock          `json:"stock,omitempty"`
	Users     []User         `gorm:"many2many:beer_users;joinForeignKey:BeerID;joinReferences:UserID" json:"users,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Session is a persisted login. A session without a UserID is anonymous.
// ID holds the raw token handed to the client; only its digest is stored.
type Session struct {
	ID        string     `gorm:"-" json:"-"`
	Digest    string     `gorm:"column:id;primaryKey" json:"-"`
	UserID    *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
	Role      Role       `json:"role,omitempty"`
	ClientIP  string     `json:"client_ip,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Anonymous reports whether the session carries no authenticated user.
func (s Session) Anonymous() bool {
	return s.UserID == nil || *s.UserID == uuid.Nil
}

// Expired reports whether the session lifetime has elapsed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// UploadedAsset describes an image accepted by the upload pipeline.
type UploadedAsset struct {
	StoredName  string `json:"filename"`
	ContentType string `json:"mimetype"`
	ByteSize    int64  `json:"size"`
}

// OutboundTarget is a URL that passed the SSRF checks, together with the
// addresses the outbound dialer is allowed to connect to.
type OutboundTarget struct {
	Scheme            string
	Host              string
	Port              string
	RawURL            string
	ResolvedAddresses []netip.Addr
}
