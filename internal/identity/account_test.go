// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/pkg/errutil"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid address", "user@example.com", false},
		{"valid with subdomain", "user@mail.example.com", false},
		{"valid with plus tag", "user+tag@example.com", false},
		{"empty", "", true},
		{"missing at sign", "userexample.com", true},
		{"missing domain", "user@", true},
		{"missing tld", "user@example", true},
		{"contains whitespace", "us er@example.com", true},
		{"double at sign", "user@@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.ValidateEmail(tt.email)
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, identity.CodeValidationFailed)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("rejects overlong address", func(t *testing.T) {
		local := make([]byte, identity.MaxEmailLength)
		for i := range local {
			local[i] = 'a'
		}
		err := identity.ValidateEmail(string(local) + "@example.com")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeValidationFailed)
	})
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", identity.NormalizeEmail("  User@Example.COM "))
	assert.Equal(t, "user@example.com", identity.NormalizeEmail("user@example.com"))
}

func TestDomainFilter(t *testing.T) {
	t.Run("nil filter allows everything", func(t *testing.T) {
		var f *identity.DomainFilter
		assert.True(t, f.Allows("user@anywhere.test"))
	})

	t.Run("empty allow list permits all domains", func(t *testing.T) {
		f, err := identity.NewDomainFilter(nil, nil)
		require.NoError(t, err)
		assert.True(t, f.Allows("user@anywhere.test"))
	})

	t.Run("allow list restricts domains", func(t *testing.T) {
		f, err := identity.NewDomainFilter([]string{"example.com", "*.example.org"}, nil)
		require.NoError(t, err)

		assert.True(t, f.Allows("user@example.com"))
		assert.True(t, f.Allows("user@mail.example.org"))
		assert.False(t, f.Allows("user@example.org"))
		assert.False(t, f.Allows("user@other.test"))
	})

	t.Run("bare star matches dotted domains", func(t *testing.T) {
		f, err := identity.NewDomainFilter([]string{"*"}, nil)
		require.NoError(t, err)

		assert.True(t, f.Allows("user@example.com"))
		assert.True(t, f.Allows("user@mail.corp.example.co.uk"))
	})

	t.Run("deny wins over allow", func(t *testing.T) {
		f, err := identity.NewDomainFilter([]string{"*"}, []string{"blocked.test"})
		require.NoError(t, err)

		assert.True(t, f.Allows("user@example.com"))
		assert.False(t, f.Allows("user@blocked.test"))
	})

	t.Run("rejects malformed pattern", func(t *testing.T) {
		_, err := identity.NewDomainFilter([]string{"[invalid"}, nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, identity.CodeValidationFailed)
	})

	t.Run("rejects address without domain", func(t *testing.T) {
		f, err := identity.NewDomainFilter([]string{"example.com"}, nil)
		require.NoError(t, err)
		assert.False(t, f.Allows("not-an-email"))
	})
}
