package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"beershop/domain/entity"
	"beershop/pkg/customerrors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-process SessionStore. The fail field forces every
// call to return an error.
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]entity.Session
	fail     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[string]entity.Session)}
}

func (s *memoryStore) ReplaceSession(_ context.Context, oldDigest string, next entity.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.sessions, oldDigest)
	next.ID = ""
	s.sessions[next.Digest] = next
	return nil
}

func (s *memoryStore) GetSession(_ context.Context, digest string) (entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return entity.Session{}, s.fail
	}
	session, ok := s.sessions[digest]
	if !ok {
		return entity.Session{}, customerrors.ErrSessionNotFound
	}
	return session, nil
}

func (s *memoryStore) DeleteSession(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	delete(s.sessions, digest)
	return nil
}

func (s *memoryStore) DeleteAllSessions(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	for digest, session := range s.sessions {
		if session.UserID != nil && *session.UserID == userID {
			delete(s.sessions, digest)
		}
	}
	return nil
}

func TestSessionManager_RegeneratesToken(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	ctx := context.Background()
	userID := uuid.New()

	first, err := m.BeginAuthenticatedSession(ctx, "", userID, entity.RoleUser, ClientMeta{IP: "203.0.113.1"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, Digest(first.ID), first.Digest)
	assert.NotEqual(t, first.ID, first.Digest, "the raw token is never stored")
	assert.Equal(t, time.Hour, m.TTL())
	assert.Equal(t, first.CreatedAt.Add(m.TTL()), first.ExpiresAt)

	second, err := m.BeginAuthenticatedSession(ctx, first.ID, userID, entity.RoleUser, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := m.Resolve(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, old.Anonymous(), "the pre-login token must not stay valid")

	cur, err := m.Resolve(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, cur.Anonymous())
	assert.Equal(t, second.ID, cur.ID)
}

func TestSessionManager_FixationAttempt(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	ctx := context.Background()

	// An attacker-chosen token that was never issued must not become valid.
	planted := "attacker-chosen-token"
	s, err := m.BeginAuthenticatedSession(ctx, planted, uuid.New(), entity.RoleUser, ClientMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, planted, s.ID)

	resolved, err := m.Resolve(ctx, planted)
	require.NoError(t, err)
	assert.True(t, resolved.Anonymous())
}

func TestSessionManager_Expiry(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	s, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleAdmin, ClientMeta{})
	require.NoError(t, err)

	_, err = m.RequireAuthenticated(s)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = m.RequireAuthenticated(s)
	assert.Equal(t, customerrors.KindUnauthorized, customerrors.KindOf(err))

	resolved, err := m.Resolve(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Anonymous())
	assert.Empty(t, store.sessions, "expired sessions are removed")
}

func TestSessionManager_RequireRole(t *testing.T) {
	m := NewSessionManager(newMemoryStore(), time.Hour)
	ctx := context.Background()

	admin, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleAdmin, ClientMeta{})
	require.NoError(t, err)
	user, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleUser, ClientMeta{})
	require.NoError(t, err)

	assert.NoError(t, m.RequireRole(admin, entity.RoleAdmin))
	assert.Equal(t, customerrors.KindForbidden, customerrors.KindOf(m.RequireRole(user, entity.RoleAdmin)))
	assert.Equal(t, customerrors.KindUnauthorized, customerrors.KindOf(m.RequireRole(entity.Session{}, entity.RoleAdmin)))

	nilID := uuid.Nil
	_, err = m.RequireAuthenticated(entity.Session{UserID: &nilID, Role: entity.RoleAdmin})
	assert.Equal(t, customerrors.KindUnauthorized, customerrors.KindOf(err))
}

func TestSessionManager_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	ctx := context.Background()

	s, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleUser, ClientMeta{})
	require.NoError(t, err)

	store.fail = errors.New("connection refused")
	_, err = m.Resolve(ctx, s.ID)
	assert.Equal(t, customerrors.KindSessionUnavailable, customerrors.KindOf(err))

	_, err = m.BeginAuthenticatedSession(ctx, s.ID, uuid.New(), entity.RoleUser, ClientMeta{})
	assert.Equal(t, customerrors.KindSessionUnavailable, customerrors.KindOf(err))

	assert.Equal(t, customerrors.KindSessionUnavailable, customerrors.KindOf(m.End(ctx, s.ID)))
}

func TestSessionManager_ResolveIgnoresGarbage(t *testing.T) {
	m := NewSessionManager(newMemoryStore(), time.Hour)
	for _, token := range []string{"", "unknown", string(make([]byte, 512))} {
		s, err := m.Resolve(context.Background(), token)
		require.NoError(t, err)
		assert.True(t, s.Anonymous())
	}
}

func TestSessionManager_End(t *testing.T) {
	m := NewSessionManager(newMemoryStore(), time.Hour)
	ctx := context.Background()

	s, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleUser, ClientMeta{UserAgent: string(make([]byte, 1000))})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(s.UserAgent), maxUserAgent)

	require.NoError(t, m.End(ctx, s.ID))
	resolved, err := m.Resolve(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, resolved.Anonymous())
	assert.NoError(t, m.End(ctx, ""))
}

func TestSessionManager_RejectsUnusableRole(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	ctx := context.Background()

	_, err := m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.Role("superuser"), ClientMeta{})
	assert.Error(t, err)

	_, err = m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.Role(""), ClientMeta{})
	assert.Error(t, err)

	_, err = m.BeginAuthenticatedSession(ctx, "", uuid.New(), entity.RoleBlocked, ClientMeta{})
	assert.Equal(t, customerrors.KindForbidden, customerrors.KindOf(err))

	assert.Empty(t, store.sessions)
}

func TestSessionManager_RevokeAll(t *testing.T) {
	store := newMemoryStore()
	m := NewSessionManager(store, time.Hour)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	a1, err := m.BeginAuthenticatedSession(ctx, "", alice, entity.RoleUser, ClientMeta{})
	require.NoError(t, err)
	a2, err := m.BeginAuthenticatedSession(ctx, "", alice, entity.RoleUser, ClientMeta{})
	require.NoError(t, err)
	b1, err := m.BeginAuthenticatedSession(ctx, "", bob, entity.RoleUser, ClientMeta{})
	require.NoError(t, err)

	require.NoError(t, m.RevokeAll(ctx, alice))

	for _, token := range []string{a1.ID, a2.ID} {
		s, err := m.Resolve(ctx, token)
		require.NoError(t, err)
		assert.True(t, s.Anonymous())
	}
	s, err := m.Resolve(ctx, b1.ID)
	require.NoError(t, err)
	assert.False(t, s.Anonymous())

	store.fail = errors.New("store down")
	assert.Equal(t, customerrors.KindSessionUnavailable, customerrors.KindOf(m.RevokeAll(ctx, alice)))
}
