package auth

import (
	"context"
	"errors"
	"log/slog"

	"beershop/domain/entity"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	errInvalidCredentials = customerrors.New(customerrors.KindInvalidCredentials, "Invalid email or password")
	errDuplicateEmail     = customerrors.New(customerrors.KindDuplicateCredential, "Email already registered")
	errBlocked            = customerrors.Forbidden("Account is blocked")
)

// UserRepo is the credential store used by the auth use case.
type UserRepo interface {
	CreateUser(ctx context.Context, user *entity.User) error
	EmailTaken(ctx context.Context, email string) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (entity.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (entity.User, error)
}

type AuthUsecase struct {
	users    UserRepo
	hasher   *PasswordHasher
	sessions *SessionManager
	logger   *slog.Logger
}

func NewAuthUsecase(users UserRepo, hasher *PasswordHasher, sessions *SessionManager, logger *slog.Logger) *AuthUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthUsecase{
		users:    users,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterInput is a validated registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Address  string
}

// RegisterUser creates the account and starts an authenticated session for
// it. The email pre-check only saves a bcrypt round; the unique index
// decides races.
func (u *AuthUsecase) RegisterUser(ctx context.Context, in RegisterInput, prevToken string, meta ClientMeta) (uuid.UUID, entity.Session, error) {
	taken, err := u.users.EmailTaken(ctx, in.Email)
	if err != nil {
		return uuid.Nil, entity.Session{}, customerrors.Internal(err)
	}
	if taken {
		return uuid.Nil, entity.Session{}, errDuplicateEmail
	}

	hash, err := u.hasher.Hash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return uuid.Nil, entity.Session{}, customerrors.Validation("Validation error",
			customerrors.FieldError{Field: "password", Reason: "must be at most 72 bytes"})
	}
	if err != nil {
		return uuid.Nil, entity.Session{}, customerrors.Internal(err)
	}

	user := &entity.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		Address:      in.Address,
		PasswordHash: hash,
		Role:         entity.RoleUser,
	}
	if err := u.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, customerrors.ErrDuplicate) {
			return uuid.Nil, entity.Session{}, errDuplicateEmail
		}
		return uuid.Nil, entity.Session{}, customerrors.Internal(err)
	}

	session, err := u.sessions.BeginAuthenticatedSession(ctx, prevToken, user.ID, user.Role, meta)
	if err != nil {
		return uuid.Nil, entity.Session{}, err
	}
	u.logger.Info("user registered", slog.String("user_id", user.ID.String()))
	return user.ID, session, nil
}

// LoginUser checks credentials and replaces prevToken with a fresh session.
// Unknown email and wrong password produce the same error after the same
// amount of hashing work.
func (u *AuthUsecase) LoginUser(ctx context.Context, email, password, prevToken string, meta ClientMeta) (uuid.UUID, entity.Session, error) {
	user, err := u.users.GetUserByEmail(ctx, email)
	if errors.Is(err, customerrors.ErrNotFound) {
		u.hasher.Burn(password)
		return uuid.Nil, entity.Session{}, errInvalidCredentials
	}
	if err != nil {
		return uuid.Nil, entity.Session{}, customerrors.Internal(err)
	}
	if !u.hasher.Verify(password, user.PasswordHash) {
		return uuid.Nil, entity.Session{}, errInvalidCredentials
	}
	if user.Role == entity.RoleBlocked {
		// Sessions opened before the block still carry the old role.
		if err := u.sessions.RevokeAll(ctx, user.ID); err != nil {
			u.logger.Warn("revoke blocked user sessions", slog.String("user_id", user.ID.String()), slog.Any("error", err))
		}
		return uuid.Nil, entity.Session{}, errBlocked
	}

	session, err := u.sessions.BeginAuthenticatedSession(ctx, prevToken, user.ID, user.Role, meta)
	if err != nil {
		return uuid.Nil, entity.Session{}, err
	}
	return user.ID, session, nil
}

// LogoutSession revokes the caller's session.
func (u *AuthUsecase) LogoutSession(ctx context.Context, token string) error {
	return u.sessions.End(ctx, token)
}

// Profile returns the user with their loved beers.
func (u *AuthUsecase) Profile(ctx context.Context, userID uuid.UUID) (entity.User, error) {
	user, err := u.users.GetUserByID(ctx, userID)
	if errors.Is(err, customerrors.ErrNotFound) {
		return entity.User{}, customerrors.NotFound("User not found")
	}
	if err != nil {
		return entity.User{}, customerrors.Internal(err)
	}
	return user, nil
}
