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

// AccountRepository implements identity.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// CreateAccount stores a new account.
func (r *AccountRepository) CreateAccount(ctx context.Context, account *identity.Account) error {
	_, err := dbFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_account (id, email, username, avatar_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		account.ID.String(),
		account.Email,
		emptyToNull(account.Username),
		emptyToNull(account.AvatarURL),
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("email", account.Email).
				Wrap(identity.ErrDuplicate)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", account.Email).
			Wrap(err)
	}
	return nil
}

// CreateCredential stores a new credential.
func (r *AccountRepository) CreateCredential(ctx context.Context, cred *identity.Credential) error {
	_, err := dbFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO user_authentication (id, account_id, provider, secret, is_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		cred.ID.String(),
		cred.AccountID.String(),
		string(cred.Provider),
		cred.Secret,
		cred.IsVerified,
		cred.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("CREDENTIAL_DUPLICATE").
				With("account_id", cred.AccountID.String()).
				With("provider", string(cred.Provider)).
				Wrap(identity.ErrDuplicate)
		}
		return oops.Code("CREDENTIAL_CREATE_FAILED").
			With("operation", "insert credential").
			With("account_id", cred.AccountID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*identity.Account, error) {
	row := dbFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT id, email, username, avatar_url, created_at
		FROM user_account
		WHERE id = $1
	`, id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*identity.Account, error) {
	row := dbFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT id, email, username, avatar_url, created_at
		FROM user_account
		WHERE LOWER(email) = LOWER($1)
	`, email)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// GetCredential retrieves the credential of the given provider for an account.
func (r *AccountRepository) GetCredential(ctx context.Context, accountID ulid.ULID, provider identity.Provider) (*identity.Credential, error) {
	row := dbFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT id, account_id, provider, secret, is_verified, created_at
		FROM user_authentication
		WHERE account_id = $1 AND provider = $2
	`, accountID.String(), string(provider))

	cred, err := r.scanCredential(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CREDENTIAL_NOT_FOUND").
			With("account_id", accountID.String()).
			With("provider", string(provider)).
			Wrap(identity.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CREDENTIAL_GET_FAILED").
			With("operation", "get credential").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return cred, nil
}

// GetCredentials retrieves all credentials for an account.
func (r *AccountRepository) GetCredentials(ctx context.Context, accountID ulid.ULID) ([]*identity.Credential, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, `
		SELECT id, account_id, provider, secret, is_verified, created_at
		FROM user_authentication
		WHERE account_id = $1
		ORDER BY created_at
	`, accountID.String())
	if err != nil {
		return nil, oops.Code("CREDENTIAL_LIST_FAILED").
			With("operation", "list credentials").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var creds []*identity.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, oops.Code("CREDENTIAL_LIST_FAILED").
				With("operation", "scan credential").
				With("account_id", accountID.String()).
				Wrap(err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CREDENTIAL_LIST_FAILED").
			With("operation", "iterate credentials").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return creds, nil
}

// UpdateCredentialSecret replaces the stored secret of a credential.
func (r *AccountRepository) UpdateCredentialSecret(ctx context.Context, id ulid.ULID, secret string) error {
	result, err := dbFrom(ctx, r.pool).Exec(ctx, `
		UPDATE user_authentication SET secret = $2
		WHERE id = $1
	`, id.String(), secret)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_SECRET_FAILED").
			With("operation", "update credential secret").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// MarkCredentialVerified flips is_verified to true.
func (r *AccountRepository) MarkCredentialVerified(ctx context.Context, id ulid.ULID) error {
	result, err := dbFrom(ctx, r.pool).Exec(ctx, `
		UPDATE user_authentication SET is_verified = TRUE
		WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("CREDENTIAL_MARK_VERIFIED_FAILED").
			With("operation", "mark credential verified").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CREDENTIAL_NOT_FOUND").
			With("id", id.String()).
			Wrap(identity.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*identity.Account, error) {
	var (
		idStr     string
		email     string
		username  *string
		avatarURL *string
		createdAt time.Time
	)

	err := row.Scan(&idStr, &email, &username, &avatarURL, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &identity.Account{
		ID:        id,
		Email:     email,
		Username:  nullToEmpty(username),
		AvatarURL: nullToEmpty(avatarURL),
		CreatedAt: createdAt,
	}, nil
}

// scanCredential scans a single row into a Credential.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanCredential(row pgx.Row) (*identity.Credential, error) {
	var (
		idStr      string
		accountStr string
		provider   string
		secret     string
		isVerified bool
		createdAt  time.Time
	)

	err := row.Scan(&idStr, &accountStr, &provider, &secret, &isVerified, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CREDENTIAL_SCAN_FAILED").
			With("operation", "scan credential").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_ID").
			With("operation", "parse credential id").
			With("id", idStr).
			Wrap(err)
	}
	accountID, err := ulid.Parse(accountStr)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INVALID_ACCOUNT_ID").
			With("operation", "parse account id").
			With("account_id", accountStr).
			Wrap(err)
	}

	return &identity.Credential{
		ID:         id,
		AccountID:  accountID,
		Provider:   identity.Provider(provider),
		Secret:     secret,
		IsVerified: isVerified,
		CreatedAt:  createdAt,
	}, nil
}

// emptyToNull converts an empty string to a NULL SQL parameter.
func emptyToNull(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullToEmpty converts a NULL column value to an empty string.
func nullToEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ identity.AccountRepository = (*AccountRepository)(nil)
