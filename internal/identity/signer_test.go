// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/pkg/errutil"
)

func TestNewTokenSigner(t *testing.T) {
	t.Run("empty secret is rejected", func(t *testing.T) {
		signer, err := identity.NewTokenSigner(nil, time.Hour, "")
		require.Error(t, err)
		assert.Nil(t, signer)
		assert.Contains(t, err.Error(), "secret is required")
	})

	t.Run("defaults apply for ttl and issuer", func(t *testing.T) {
		signer, err := identity.NewTokenSigner([]byte("secret"), 0, "")
		require.NoError(t, err)
		require.NotNil(t, signer)
	})
}

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer, err := identity.NewTokenSigner([]byte("test-secret"), time.Hour, "accountd-test")
	require.NoError(t, err)

	token, err := signer.Sign("user@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	email, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestTokenSigner_Verify(t *testing.T) {
	signer, err := identity.NewTokenSigner([]byte("test-secret"), time.Hour, "accountd-test")
	require.NoError(t, err)

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := signer.Verify("not-a-token")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidToken)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		other, err := identity.NewTokenSigner([]byte("other-secret"), time.Hour, "accountd-test")
		require.NoError(t, err)
		token, err := other.Sign("user@example.com")
		require.NoError(t, err)

		_, err = signer.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidToken)
	})

	t.Run("rejects token from another issuer", func(t *testing.T) {
		other, err := identity.NewTokenSigner([]byte("test-secret"), time.Hour, "someone-else")
		require.NoError(t, err)
		token, err := other.Sign("user@example.com")
		require.NoError(t, err)

		_, err = signer.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidToken)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		shortLived, err := identity.NewTokenSigner([]byte("test-secret"), time.Nanosecond, "accountd-test")
		require.NoError(t, err)
		token, err := shortLived.Sign("user@example.com")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)

		_, err = shortLived.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidToken)
	})

	t.Run("rejects token without email claim", func(t *testing.T) {
		token, err := signer.Sign("")
		require.NoError(t, err)

		_, err = signer.Verify(token)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeInvalidToken)
	})
}
