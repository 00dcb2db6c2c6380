// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	// SessionTokenBytes gives 256 bits of entropy, well past the 128-bit
	// floor for unguessable tokens.
	SessionTokenBytes = 32

	// DefaultSessionTTL matches the original platform's 7-day sessions.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// Session is a live or historical login instance. Rows are append-only:
// logout flips IsActive, nothing is ever deleted, preserving the login
// audit trail.
type Session struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	// TokenHash is the SHA-256 of the opaque token handed to the client.
	// The plaintext never touches the database.
	TokenHash string
	IsActive  bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpiredAt reports whether the session would be expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && t.After(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token goes to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	token = hex.EncodeToString(buf)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA-256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifySessionToken checks a plaintext token against a stored hash in
// constant time.
func VerifySessionToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashSessionToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// Deactivate flips IsActive to false for the session with the given
	// token hash. Returns ErrNotFound if no such session exists.
	Deactivate(ctx context.Context, tokenHash string) error

	// CountActiveByAccount returns the number of active, unexpired
	// sessions for an account.
	CountActiveByAccount(ctx context.Context, accountID ulid.ULID) (int64, error)
}

// SessionManager issues, validates, and revokes opaque session tokens.
// It holds no expiry state of its own: expiry is compared against the
// clock at lookup time, and an expired-but-active row is reported invalid
// without being mutated.
type SessionManager struct {
	sessions  SessionRepository
	ttl       time.Duration
	maxActive int
	now       func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive ttl falls
// back to DefaultSessionTTL. maxActive caps the number of active
// sessions per account; zero means unlimited.
func NewSessionManager(sessions SessionRepository, ttl time.Duration, maxActive int) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if maxActive < 0 {
		return nil, oops.Errorf("session limit must not be negative")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{sessions: sessions, ttl: ttl, maxActive: maxActive, now: time.Now}, nil
}

// Create issues a new session for the account and returns the plaintext
// token to hand to the client. When a session cap is configured, the
// account's active sessions are counted first and the cap failure is
// reported before anything is written.
func (m *SessionManager) Create(ctx context.Context, accountID ulid.ULID) (string, error) {
	if m.maxActive > 0 {
		active, err := m.sessions.CountActiveByAccount(ctx, accountID)
		if err != nil {
			return "", oops.Code("SESSION_CREATE_FAILED").
				With("account_id", accountID.String()).
				With("operation", "count active sessions").
				Wrap(err)
		}
		if active >= int64(m.maxActive) {
			return "", oops.Code(CodeSessionLimit).
				With("limit", m.maxActive).
				Errorf("too many active sessions, log out of another device first")
		}
	}

	token, hash, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}

	now := m.now()
	session := &Session{
		ID:        ulid.Make(),
		AccountID: accountID,
		TokenHash: hash,
		IsActive:  true,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return token, nil
}

// Lookup resolves a token to its session. Unknown, inactive, and expired
// tokens all fail with CodeUnauthorized-class errors.
func (m *SessionManager) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code(CodeUnauthorized).Errorf("session token cannot be empty")
	}

	session, err := m.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthorized).Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_LOOKUP_FAILED").Wrap(err)
	}

	if !session.IsActive {
		return nil, oops.Code(CodeUnauthorized).Errorf("session is not active")
	}
	if session.IsExpiredAt(m.now()) {
		return nil, oops.Code(CodeSessionExpired).Errorf("session has expired")
	}
	return session, nil
}

// Deactivate revokes the session behind a token. Returns ErrNotFound
// (wrapped) if the token is unknown.
func (m *SessionManager) Deactivate(ctx context.Context, token string) error {
	if token == "" {
		return oops.Code(CodeUnauthorized).Errorf("session token cannot be empty")
	}
	if err := m.sessions.Deactivate(ctx, HashSessionToken(token)); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeUnauthorized).Wrap(ErrNotFound)
		}
		return oops.Code("SESSION_DEACTIVATE_FAILED").Wrap(err)
	}
	return nil
}
