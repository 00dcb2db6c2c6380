// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/identity"
)

// SessionRepository implements identity.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *identity.Session) error {
	_, err := dbFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_session (id, account_id, token_hash, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		session.ID.String(),
		session.AccountID.String(),
		session.TokenHash,
		session.IsActive,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("SESSION_DUPLICATE").
				With("id", session.ID.String()).
				Wrap(identity.ErrDuplicate)
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("account_id", session.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*identity.Session, error) {
	row := dbFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT id, account_id, token_hash, is_active, expires_at, created_at
		FROM user_session
		WHERE token_hash = $1
	`, tokenHash)

	session, err := r.scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return session, nil
}

// Deactivate flips is_active to false for the session with the given
// token hash. Rows are never deleted so the login history survives.
func (r *SessionRepository) Deactivate(ctx context.Context, tokenHash string) error {
	result, err := dbFrom(ctx, r.pool).Exec(ctx, `
		UPDATE user_session SET is_active = FALSE
		WHERE token_hash = $1
	`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DEACTIVATE_FAILED").
			With("operation", "deactivate session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(identity.ErrNotFound)
	}
	return nil
}

// CountActiveByAccount returns the number of active, unexpired sessions
// for an account.
func (r *SessionRepository) CountActiveByAccount(ctx context.Context, accountID ulid.ULID) (int64, error) {
	var count int64
	err := dbFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM user_session
		WHERE account_id = $1 AND is_active AND expires_at > NOW()
	`, accountID.String()).Scan(&count)
	if err != nil {
		return 0, oops.Code("SESSION_COUNT_FAILED").
			With("operation", "count active sessions").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return count, nil
}

// scanSession scans a single row into a Session.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *SessionRepository) scanSession(row pgx.Row) (*identity.Session, error) {
	var (
		idStr      string
		accountStr string
		tokenHash  string
		isActive   bool
		expiresAt  time.Time
		createdAt  time.Time
	)

	err := row.Scan(&idStr, &accountStr, &tokenHash, &isActive, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	accountID, err := ulid.Parse(accountStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountStr).
			Wrap(err)
	}

	return &identity.Session{
		ID:        id,
		AccountID: accountID,
		TokenHash: tokenHash,
		IsActive:  isActive,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ identity.SessionRepository = (*SessionRepository)(nil)
