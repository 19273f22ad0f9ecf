package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"beershop/domain/entity"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
)

const (
	tokenBytes   = 32
	maxUserAgent = 255
)

var errSessionUnavailable = customerrors.New(customerrors.KindSessionUnavailable, "Session service unavailable")

// SessionStore persists sessions by token digest.
type SessionStore interface {
	ReplaceSession(ctx context.Context, oldDigest string, next entity.Session) error
	GetSession(ctx context.Context, digest string) (entity.Session, error)
	DeleteSession(ctx context.Context, digest string) error
	DeleteAllSessions(ctx context.Context, userID uuid.UUID) error
}

// ClientMeta is recorded on a session for auditing.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// SessionManager drives the Anonymous -> Authenticated -> Expired|Revoked
// lifecycle. Raw tokens only live in the cookie; the store sees digests.
type SessionManager struct {
	store SessionStore
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionManager(store SessionStore, ttl time.Duration) *SessionManager {
	return &SessionManager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// BeginAuthenticatedSession discards the session identified by prevToken and
// issues a fresh token for userID. The previous token is never promoted.
func (m *SessionManager) BeginAuthenticatedSession(ctx context.Context, prevToken string, userID uuid.UUID, role entity.Role, meta ClientMeta) (entity.Session, error) {
	if userID == uuid.Nil {
		return entity.Session{}, errors.New("authenticated session requires a user")
	}
	if !role.Valid() {
		return entity.Session{}, fmt.Errorf("authenticated session with unknown role %q", role)
	}
	if role == entity.RoleBlocked {
		return entity.Session{}, errBlocked
	}
	token, err := newToken()
	if err != nil {
		return entity.Session{}, err
	}

	now := m.now().UTC()
	uid := userID
	session := entity.Session{
		ID:        token,
		Digest:    Digest(token),
		UserID:    &uid,
		Role:      role,
		ClientIP:  meta.IP,
		UserAgent: truncate(meta.UserAgent, maxUserAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	var oldDigest string
	if prevToken != "" {
		oldDigest = Digest(prevToken)
	}
	if err := m.store.ReplaceSession(ctx, oldDigest, session); err != nil {
		return entity.Session{}, customerrors.Wrap(customerrors.KindSessionUnavailable, errSessionUnavailable.Message, err)
	}
	return session, nil
}

// Resolve loads the session for a raw token. Missing, unknown and expired
// tokens yield an anonymous session; a failing store yields an error so the
// request is never silently downgraded.
func (m *SessionManager) Resolve(ctx context.Context, token string) (entity.Session, error) {
	if token == "" || len(token) > 128 {
		return entity.Session{}, nil
	}
	digest := Digest(token)
	session, err := m.store.GetSession(ctx, digest)
	if errors.Is(err, customerrors.ErrSessionNotFound) {
		return entity.Session{}, nil
	}
	if err != nil {
		return entity.Session{}, customerrors.Wrap(customerrors.KindSessionUnavailable, errSessionUnavailable.Message, err)
	}
	if session.Expired(m.now()) {
		if err := m.store.DeleteSession(ctx, digest); err != nil {
			return entity.Session{}, customerrors.Wrap(customerrors.KindSessionUnavailable, errSessionUnavailable.Message, err)
		}
		return entity.Session{}, nil
	}
	session.ID = token
	return session, nil
}

// RequireAuthenticated returns the session's user or Unauthorized.
func (m *SessionManager) RequireAuthenticated(session entity.Session) (uuid.UUID, error) {
	if session.Anonymous() || session.Expired(m.now()) {
		return uuid.Nil, customerrors.Unauthorized("")
	}
	return *session.UserID, nil
}

// RequireRole compares against the role cached at login. Role changes take
// effect on the next login.
func (m *SessionManager) RequireRole(session entity.Session, role entity.Role) error {
	if _, err := m.RequireAuthenticated(session); err != nil {
		return err
	}
	if session.Role != role {
		return customerrors.Forbidden("")
	}
	return nil
}

// End revokes the session behind token. Unknown tokens are ignored.
func (m *SessionManager) End(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.DeleteSession(ctx, Digest(token)); err != nil {
		return customerrors.Wrap(customerrors.KindSessionUnavailable, errSessionUnavailable.Message, err)
	}
	return nil
}

// RevokeAll ends every session of userID, wherever it was opened.
func (m *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	if err := m.store.DeleteAllSessions(ctx, userID); err != nil {
		return customerrors.Wrap(customerrors.KindSessionUnavailable, errSessionUnavailable.Message, err)
	}
	return nil
}

// Digest is the stored form of a session token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
