package jwt

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenSessionMismatch = errors.New("csrf token bound to another session")

// CSRFManager issues anti-forgery tokens bound to a session. The token is an
// HS256 JWT whose "sid" claim is a digest of the session token, so it can be
// exposed to scripts without revealing the session itself.
type CSRFManager struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewCSRFManager(secretKey string, tokenTTL time.Duration) *CSRFManager {
	return &CSRFManager{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

type csrfClaims struct {
	SessionDigest string `json:"sid"`
	jwt.RegisteredClaims
}

// NewToken generates a CSRF token for the given session token.
func (m *CSRFManager) NewToken(sessionID string) (string, error) {
	now := m.now()
	claims := &csrfClaims{
		SessionDigest: digest(sessionID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// Verify checks signature, expiry and that the token belongs to sessionID.
func (m *CSRFManager) Verify(tokenString, sessionID string) error {
	if tokenString == "" || sessionID == "" {
		return jwt.ErrTokenMalformed
	}
	claims := &csrfClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return m.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(claims.SessionDigest), []byte(digest(sessionID))) != 1 {
		return ErrTokenSessionMismatch
	}
	return nil
}

func digest(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:])
}
