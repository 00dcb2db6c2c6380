// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/internal/identity/postgres"
)

func TestAccountRepository_CreateAccount(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("creates new account", func(t *testing.T) {
		account := &identity.Account{
			ID:        ulid.Make(),
			Email:     "create@example.com",
			Username:  "create_user",
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}

		err := repo.CreateAccount(ctx, account)
		require.NoError(t, err)

		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM user_account WHERE id = $1`, account.ID.String())
		})

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, account.ID, stored.ID)
		assert.Equal(t, account.Email, stored.Email)
		assert.Equal(t, account.Username, stored.Username)
	})

	t.Run("creates account without username or avatar", func(t *testing.T) {
		account := &identity.Account{
			ID:        ulid.Make(),
			Email:     "bare@example.com",
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}

		err := repo.CreateAccount(ctx, account)
		require.NoError(t, err)

		t.Cleanup(func() {
			_, _ = testPool.Exec(ctx, `DELETE FROM user_account WHERE id = $1`, account.ID.String())
		})

		stored, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Username)
		assert.Empty(t, stored.AvatarURL)
	})

	t.Run("fails on duplicate email", func(t *testing.T) {
		createTestAccount(ctx, t, "duplicate@example.com")

		account := &identity.Account{
			ID:        ulid.Make(),
			Email:     "duplicate@example.com",
			CreatedAt: time.Now().UTC(),
		}
		err := repo.CreateAccount(ctx, account)
		assert.ErrorIs(t, err, identity.ErrDuplicate)
	})

	t.Run("fails on duplicate email with different case", func(t *testing.T) {
		createTestAccount(ctx, t, "casedup@example.com")

		account := &identity.Account{
			ID:        ulid.Make(),
			Email:     "CaseDup@Example.COM",
			CreatedAt: time.Now().UTC(),
		}
		err := repo.CreateAccount(ctx, account)
		assert.ErrorIs(t, err, identity.ErrDuplicate)
	})
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("returns account by email", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "getbyemail@example.com")

		result, err := repo.GetByEmail(ctx, "getbyemail@example.com")
		require.NoError(t, err)
		assert.Equal(t, accountID, result.ID)
	})

	t.Run("case-insensitive email lookup", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "caseemail@example.com")

		result, err := repo.GetByEmail(ctx, "CaseEmail@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, accountID, result.ID)
	})

	t.Run("returns ErrNotFound for non-existent email", func(t *testing.T) {
		result, err := repo.GetByEmail(ctx, "nonexistent@example.com")
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("returns ErrNotFound for non-existent ID", func(t *testing.T) {
		result, err := repo.GetByID(ctx, ulid.Make())
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestAccountRepository_CreateCredential(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("creates credential", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "cred@example.com")

		cred := &identity.Credential{
			ID:        ulid.Make(),
			AccountID: accountID,
			Provider:  identity.ProviderLocal,
			Secret:    "bcrypt-digest",
			CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		err := repo.CreateCredential(ctx, cred)
		require.NoError(t, err)

		stored, err := repo.GetCredential(ctx, accountID, identity.ProviderLocal)
		require.NoError(t, err)
		assert.Equal(t, cred.ID, stored.ID)
		assert.Equal(t, cred.Secret, stored.Secret)
		assert.False(t, stored.IsVerified)
	})

	t.Run("fails on duplicate provider for same account", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "creddup@example.com")
		createTestCredential(ctx, t, accountID, identity.ProviderLocal)

		cred := &identity.Credential{
			ID:        ulid.Make(),
			AccountID: accountID,
			Provider:  identity.ProviderLocal,
			Secret:    "another-digest",
			CreatedAt: time.Now().UTC(),
		}
		err := repo.CreateCredential(ctx, cred)
		assert.ErrorIs(t, err, identity.ErrDuplicate)
	})

	t.Run("allows different providers for same account", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "credmulti@example.com")
		createTestCredential(ctx, t, accountID, identity.ProviderLocal)

		cred := &identity.Credential{
			ID:        ulid.Make(),
			AccountID: accountID,
			Provider:  identity.ProviderGoogle,
			Secret:    "google-subject",
			CreatedAt: time.Now().UTC(),
		}
		err := repo.CreateCredential(ctx, cred)
		require.NoError(t, err)

		creds, err := repo.GetCredentials(ctx, accountID)
		require.NoError(t, err)
		assert.Len(t, creds, 2)
	})
}

func TestAccountRepository_GetCredential(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("returns ErrNotFound for missing provider", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "getcred@example.com")
		createTestCredential(ctx, t, accountID, identity.ProviderGoogle)

		result, err := repo.GetCredential(ctx, accountID, identity.ProviderLocal)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestAccountRepository_GetCredentials(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("returns empty slice for account with no credentials", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "nocreds@example.com")

		creds, err := repo.GetCredentials(ctx, accountID)
		require.NoError(t, err)
		assert.Empty(t, creds)
	})
}

func TestAccountRepository_UpdateCredentialSecret(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("replaces stored secret", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "updatesecret@example.com")
		credID := createTestCredential(ctx, t, accountID, identity.ProviderLocal)

		err := repo.UpdateCredentialSecret(ctx, credID, "new-digest")
		require.NoError(t, err)

		stored, err := repo.GetCredential(ctx, accountID, identity.ProviderLocal)
		require.NoError(t, err)
		assert.Equal(t, "new-digest", stored.Secret)
	})

	t.Run("returns ErrNotFound for non-existent credential", func(t *testing.T) {
		err := repo.UpdateCredentialSecret(ctx, ulid.Make(), "new-digest")
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

func TestAccountRepository_MarkCredentialVerified(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	t.Run("flips is_verified", func(t *testing.T) {
		accountID := createTestAccount(ctx, t, "verify@example.com")
		credID := createTestCredential(ctx, t, accountID, identity.ProviderLocal)

		err := repo.MarkCredentialVerified(ctx, credID)
		require.NoError(t, err)

		stored, err := repo.GetCredential(ctx, accountID, identity.ProviderLocal)
		require.NoError(t, err)
		assert.True(t, stored.IsVerified)
	})

	t.Run("returns ErrNotFound for non-existent credential", func(t *testing.T) {
		err := repo.MarkCredentialVerified(ctx, ulid.Make())
		assert.ErrorIs(t, err, identity.ErrNotFound)
	})
}

// Compile-time interface check.
var _ identity.AccountRepository = (*postgres.AccountRepository)(nil)
