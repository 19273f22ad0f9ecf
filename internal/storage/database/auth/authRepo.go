package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"beershop/domain/entity"
	"beershop/internal/metrics"
	"beershop/internal/storage/database"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthRepo struct {
	db      *gorm.DB
	Metrics *metrics.Metrics
}

func NewAuthRepo(db *gorm.DB, metrics *metrics.Metrics) *AuthRepo {
	return &AuthRepo{
		db:      db,
		Metrics: metrics,
	}
}

// CreateUser inserts a new user. A concurrent registration of the same email
// surfaces as customerrors.ErrDuplicate from the unique index.
func (r *AuthRepo) CreateUser(ctx context.Context, user *entity.User) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("insert_user", start, err)
	}(time.Now())

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = normalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = entity.RoleUser
	}

	res := r.db.WithContext(ctx).Omit("Beers").Create(user)
	if err = database.MapError(res.Error); err != nil {
		return err
	}
	if res.RowsAffected != 1 {
		err = customerrors.ErrNoRowsAffected
		return err
	}
	return nil
}

// EmailTaken checks for an existing account, soft-deleted ones included.
func (r *AuthRepo) EmailTaken(ctx context.Context, email string) (taken bool, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_exists", start, err)
	}(time.Now())

	var count int64
	err = r.db.WithContext(ctx).Unscoped().Model(&entity.User{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail returns the user with the given email, matched case-insensitively.
func (r *AuthRepo) GetUserByEmail(ctx context.Context, email string) (user entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_by_email", start, err)
	}(time.Now())

	err = database.MapError(r.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		Take(&user).Error)
	return user, err
}

// GetUserByID loads a user together with the beers they love.
func (r *AuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (user entity.User, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_user_by_id", start, err)
	}(time.Now())

	err = database.MapError(r.db.WithContext(ctx).
		Preload("Beers", func(tx *gorm.DB) *gorm.DB { return tx.Order("beers.name") }).
		Where("id = ?", id).
		Take(&user).Error)
	return user, err
}

// ReplaceSession deletes the record for oldDigest, if any, and stores next
// in the same transaction. An empty oldDigest just inserts next.
func (r *AuthRepo) ReplaceSession(ctx context.Context, oldDigest string, next entity.Session) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("replace_session", start, err)
	}(time.Now())

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if oldDigest != "" {
			if err := tx.Where("id = ?", oldDigest).Delete(&entity.Session{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&next).Error
	})
	err = database.MapError(err)
	return err
}

// GetSession retrieves a session by the digest of its token.
func (r *AuthRepo) GetSession(ctx context.Context, digest string) (session entity.Session, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("select_session", start, err)
	}(time.Now())

	err = r.db.WithContext(ctx).Where("id = ?", digest).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = customerrors.ErrSessionNotFound
	}
	return session, err
}

// DeleteSession removes a single session, logging that client out.
func (r *AuthRepo) DeleteSession(ctx context.Context, digest string) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_session", start, err)
	}(time.Now())

	err = r.db.WithContext(ctx).Where("id = ?", digest).Delete(&entity.Session{}).Error
	return err
}

// DeleteAllSessions removes every session of a user.
func (r *AuthRepo) DeleteAllSessions(ctx context.Context, userID uuid.UUID) (err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_user_sessions", start, err)
	}(time.Now())

	err = r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&entity.Session{}).Error
	return err
}

// DeleteExpiredSessions purges sessions whose lifetime ended before now.
// Expiry times are stored in UTC, so now is converted before comparing.
func (r *AuthRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (n int64, err error) {
	defer func(start time.Time) {
		r.Metrics.ObserveDB("delete_expired_sessions", start, err)
	}(time.Now())

	res := r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&entity.Session{})
	return res.RowsAffected, res.Error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
