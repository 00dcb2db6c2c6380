// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

// Package identity implements account, credential, and session management:
// password and Google registration/login, session issuance and validation,
// password reset, and the email verification token flow.
package identity

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Provider identifies the authentication method backing a credential.
type Provider string

// Supported authentication providers.
const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// Account is a unique end-user identity keyed by email.
type Account struct {
	ID        ulid.ULID
	Email     string
	Username  string // optional display name
	AvatarURL string // optional
	CreatedAt time.Time
}

// Credential is one authentication method bound to an account. An account
// holds at most one credential per provider, and the first provider an
// account acquires is authoritative: mismatched-provider logins are
// rejected rather than silently linking a second method.
type Credential struct {
	ID        ulid.ULID
	AccountID ulid.ULID
	Provider  Provider
	// Secret is the bcrypt hash for local credentials and the provider
	// subject identifier for google credentials.
	Secret     string
	IsVerified bool
	CreatedAt  time.Time
}

// AccountView is the read projection returned for authenticated requests.
type AccountView struct {
	Email      string    `json:"email"`
	Username   string    `json:"username,omitempty"`
	AvatarURL  string    `json:"avatarUrl,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	IsVerified bool      `json:"isVerified"`
	Provider   Provider  `json:"provider"`
}

// emailRegex is a pragmatic format check; the mailbox is ultimately proven
// by the verification flow, not by the regex.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// MaxEmailLength caps stored addresses.
const MaxEmailLength = 255

// ValidateEmail checks basic email shape. Comparison and storage are
// case-insensitive; callers should pass addresses through NormalizeEmail.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeValidationFailed).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeValidationFailed).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeValidationFailed).Errorf("invalid email address")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for case-insensitive
// storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DomainFilter restricts registration to configured email domains using
// glob patterns (e.g. "*.example.com"). A nil filter allows everything.
// Deny patterns win over allow patterns.
type DomainFilter struct {
	allow []glob.Glob
	deny  []glob.Glob
}

// NewDomainFilter compiles allow and deny glob patterns. An empty allow
// list permits all domains not matched by a deny pattern. Patterns are
// compiled without a separator so "*" matches any domain; "*.example.com"
// still requires at least one label before the suffix.
func NewDomainFilter(allow, deny []string) (*DomainFilter, error) {
	f := &DomainFilter{}
	for _, p := range allow {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code(CodeValidationFailed).
				With("pattern", p).
				Wrap(err)
		}
		f.allow = append(f.allow, g)
	}
	for _, p := range deny {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, oops.Code(CodeValidationFailed).
				With("pattern", p).
				Wrap(err)
		}
		f.deny = append(f.deny, g)
	}
	return f, nil
}

// Allows reports whether the domain of the given (normalized) email address
// is accepted for registration.
func (f *DomainFilter) Allows(email string) bool {
	if f == nil {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return false
	}
	domain := email[at+1:]
	for _, g := range f.deny {
		if g.Match(domain) {
			return false
		}
	}
	if len(f.allow) == 0 {
		return true
	}
	for _, g := range f.allow {
		if g.Match(domain) {
			return true
		}
	}
	return false
}

// AccountRepository manages account and credential persistence.
//
// Create methods participate in the transaction stored in the context by
// Transactor.InTransaction; outside a transaction they execute standalone.
// Inserts that violate a unique constraint return an error wrapping
// ErrDuplicate.
type AccountRepository interface {
	// CreateAccount stores a new account.
	CreateAccount(ctx context.Context, account *Account) error

	// CreateCredential stores a new credential.
	CreateCredential(ctx context.Context, cred *Credential) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetCredential retrieves the credential of the given provider for an
	// account. Returns ErrNotFound if the account has no such credential.
	GetCredential(ctx context.Context, accountID ulid.ULID, provider Provider) (*Credential, error)

	// GetCredentials retrieves all credentials for an account.
	GetCredentials(ctx context.Context, accountID ulid.ULID) ([]*Credential, error)

	// UpdateCredentialSecret replaces the stored secret of a credential.
	UpdateCredentialSecret(ctx context.Context, id ulid.ULID, secret string) error

	// MarkCredentialVerified flips IsVerified to true.
	MarkCredentialVerified(ctx context.Context, id ulid.ULID) error
}

// Transactor runs a function inside a single database transaction. If fn
// returns an error the transaction is rolled back completely, so a failed
// registration never leaves a partial account/credential pair.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
