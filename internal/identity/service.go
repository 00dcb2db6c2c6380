// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/pkg/errutil"
)

// dummyPasswordDigest is verified against when no local credential exists,
// keeping response time flat so login cannot be used to enumerate
// accounts. It is a bcrypt digest of random bytes, not a credential.
//
//nolint:gosec // G101: intentionally fake digest for timing attack prevention.
const dummyPasswordDigest = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// OAuthProfile is the identity the transport boundary extracted from a
// completed OAuth handshake. The handshake itself (consent screen, code
// exchange, ID token verification) happens before this package is called.
type OAuthProfile struct {
	Email       string
	Subject     string // provider-stable subject identifier
	DisplayName string
	AvatarURL   string
}

// ServiceOptions carries the policy knobs for a Service. All fields are
// read-only after construction.
type ServiceOptions struct {
	Policy  PasswordPolicy
	Domains *DomainFilter

	// RequireVerifiedLogin blocks password login until the email is
	// verified. The verification flow issues the first session instead.
	RequireVerifiedLogin bool

	// VerificationBaseURL is the public base URL used to build
	// verification links, e.g. "https://accounts.example.com".
	VerificationBaseURL string

	Logger  *slog.Logger
	Metrics *Metrics
}

// Service orchestrates registration, login, logout, password reset, and
// email verification. It is constructed once at process start and passed
// to request handlers; it holds no mutable state of its own.
type Service struct {
	accounts AccountRepository
	sessions *SessionManager
	tx       Transactor
	hasher   PasswordHasher
	signer   *TokenSigner
	mailer   VerificationMailer
	opts     ServiceOptions
	logger   *slog.Logger
}

// NewService creates a Service.
func NewService(
	accounts AccountRepository,
	sessions *SessionManager,
	tx Transactor,
	hasher PasswordHasher,
	signer *TokenSigner,
	mailer VerificationMailer,
	opts ServiceOptions,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if signer == nil {
		return nil, oops.Errorf("token signer is required")
	}
	if mailer == nil {
		return nil, oops.Errorf("verification mailer is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		accounts: accounts,
		sessions: sessions,
		tx:       tx,
		hasher:   hasher,
		signer:   signer,
		mailer:   mailer,
		opts:     opts,
		logger:   logger,
	}, nil
}

// RegisterLocal creates an account with a password credential and sends a
// verification email. The account and credential are written in one
// transaction; the store's unique constraint on email is the authoritative
// duplicate check, so a constraint violation surfaces as the same conflict
// as the pre-check. Email delivery failure is logged, not returned: the
// account is recoverable through the resend flow.
func (s *Service) RegisterLocal(ctx context.Context, email, password string) (err error) {
	defer func() { s.opts.Metrics.recordRegistration(ProviderLocal, err) }()

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if !s.opts.Domains.Allows(email) {
		return oops.Code(CodeValidationFailed).Errorf("email domain is not accepted for registration")
	}
	if err := s.opts.Policy.Validate(password); err != nil {
		return err
	}

	// Advisory pre-check: gives a clean conflict without burning a hash.
	// The unique constraint still decides the race.
	if _, lookupErr := s.accounts.GetByEmail(ctx, email); lookupErr == nil {
		return oops.Code(CodeEmailConflict).Errorf("user already exists")
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return oops.Code("REGISTER_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return oops.Code("REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := time.Now()
	account := &Account{
		ID:        ulid.Make(),
		Email:     email,
		CreatedAt: now,
	}
	cred := &Credential{
		ID:         ulid.Make(),
		AccountID:  account.ID,
		Provider:   ProviderLocal,
		Secret:     digest,
		IsVerified: false,
		CreatedAt:  now,
	}

	txErr := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.CreateAccount(ctx, account); err != nil {
			return err
		}
		return s.accounts.CreateCredential(ctx, cred)
	})
	if txErr != nil {
		if errors.Is(txErr, ErrDuplicate) {
			return oops.Code(CodeEmailConflict).Errorf("user already exists")
		}
		return oops.Code("REGISTER_FAILED").
			With("operation", "create account and credential").
			Wrap(txErr)
	}

	s.sendVerification(ctx, email)
	return nil
}

// LoginLocal authenticates a password login and returns a new session
// token. Unknown email and wrong password produce the same error message,
// and a dummy digest is verified when no local credential exists to keep
// response time flat.
func (s *Service) LoginLocal(ctx context.Context, email, password string) (token string, err error) {
	defer func() { s.opts.Metrics.recordLogin(ProviderLocal, err) }()

	email = NormalizeEmail(email)

	account, cred, lookupErr := s.localCredential(ctx, email)
	targetDigest := dummyPasswordDigest
	if lookupErr == nil {
		targetDigest = cred.Secret
	} else if !errors.Is(lookupErr, ErrNotFound) {
		return "", oops.Code("LOGIN_FAILED").
			With("operation", "look up local credential").
			Wrap(lookupErr)
	}

	// Always verify, even against the dummy digest.
	valid, verifyErr := s.hasher.Verify(password, targetDigest)
	if verifyErr != nil && lookupErr == nil {
		return "", oops.Code("LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if lookupErr != nil || !valid {
		return "", oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
	}

	if s.opts.RequireVerifiedLogin && !cred.IsVerified {
		return "", oops.Code(CodeEmailNotVerified).Errorf("email address is not verified")
	}

	token, err = s.sessions.Create(ctx, account.ID)
	if err != nil {
		return "", err
	}
	return token, nil
}

// LoginOrRegisterOAuth logs in an existing google account or atomically
// creates an account + google credential from the profile, then issues a
// session. An account whose credential belongs to another provider is
// never silently linked: the attempt fails with a provider conflict.
func (s *Service) LoginOrRegisterOAuth(ctx context.Context, profile OAuthProfile) (token string, err error) {
	defer func() { s.opts.Metrics.recordLogin(ProviderGoogle, err) }()

	email := NormalizeEmail(profile.Email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}

	account, lookupErr := s.accounts.GetByEmail(ctx, email)
	switch {
	case lookupErr == nil:
		creds, err := s.accounts.GetCredentials(ctx, account.ID)
		if err != nil {
			return "", oops.Code("OAUTH_LOGIN_FAILED").
				With("operation", "get credentials").
				Wrap(err)
		}
		for _, c := range creds {
			if c.Provider != ProviderGoogle {
				return "", oops.Code(CodeProviderConflict).
					Errorf("account is registered with a different sign-in method")
			}
		}
		if len(creds) == 0 {
			// An account without credentials should not exist; treat it
			// as a conflict rather than adopting it.
			return "", oops.Code(CodeProviderConflict).
				Errorf("account is registered with a different sign-in method")
		}

	case errors.Is(lookupErr, ErrNotFound):
		account, err = s.createOAuthAccount(ctx, email, profile)
		if err != nil {
			return "", err
		}

	default:
		return "", oops.Code("OAUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(lookupErr)
	}

	token, err = s.sessions.Create(ctx, account.ID)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) createOAuthAccount(ctx context.Context, email string, profile OAuthProfile) (*Account, error) {
	now := time.Now()
	account := &Account{
		ID:        ulid.Make(),
		Email:     email,
		Username:  profile.DisplayName,
		AvatarURL: profile.AvatarURL,
		CreatedAt: now,
	}
	secret := profile.Subject
	if secret == "" {
		secret = email
	}
	cred := &Credential{
		ID:        ulid.Make(),
		AccountID: account.ID,
		Provider:  ProviderGoogle,
		Secret:    secret,
		// Google has already verified the mailbox.
		IsVerified: true,
		CreatedAt:  now,
	}

	txErr := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.CreateAccount(ctx, account); err != nil {
			return err
		}
		return s.accounts.CreateCredential(ctx, cred)
	})
	if txErr != nil {
		if errors.Is(txErr, ErrDuplicate) {
			// Lost a registration race for this email.
			return nil, oops.Code(CodeEmailConflict).Errorf("user already exists")
		}
		return nil, oops.Code("OAUTH_REGISTER_FAILED").
			With("operation", "create account and credential").
			Wrap(txErr)
	}
	s.opts.Metrics.recordRegistration(ProviderGoogle, nil)
	return account, nil
}

// Logout deactivates the session behind the token. Unknown tokens fail
// Unauthorized; the transport clears the cookie regardless of outcome.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	return s.sessions.Deactivate(ctx, sessionToken)
}

// ResetPassword replaces the password of a local credential after
// verifying the old one. Existing sessions stay active: a reset proves
// possession of the old password, so it is not treated as a compromise
// signal. This is a deliberate, documented policy.
func (s *Service) ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error {
	email = NormalizeEmail(email)

	_, cred, err := s.localCredential(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeNotRegisteredWithPassword).
				Errorf("user is not registered with password credentials")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "look up local credential").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(oldPassword, cred.Secret)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "verify old password").
			Wrap(err)
	}
	if !valid {
		return oops.Code(CodeInvalidCredentials).Errorf("incorrect password")
	}

	if err := s.opts.Policy.Validate(newPassword); err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}
	if err := s.accounts.UpdateCredentialSecret(ctx, cred.ID, digest); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update credential secret").
			Wrap(err)
	}
	return nil
}

// VerifyEmail validates a verification token, marks the local credential
// verified, and issues a session so proving mailbox ownership logs the
// user in without re-entering credentials. Verifying an already-verified
// credential is an idempotent success.
func (s *Service) VerifyEmail(ctx context.Context, token string) (sessionToken string, err error) {
	defer func() { s.opts.Metrics.recordVerification(err) }()

	email, err := s.signer.Verify(token)
	if err != nil {
		return "", err
	}

	account, cred, lookupErr := s.localCredential(ctx, NormalizeEmail(email))
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code(CodeInvalidToken).Errorf("invalid verification token")
		}
		return "", oops.Code("VERIFY_EMAIL_FAILED").
			With("operation", "look up local credential").
			Wrap(lookupErr)
	}

	if !cred.IsVerified {
		if err := s.accounts.MarkCredentialVerified(ctx, cred.ID); err != nil {
			return "", oops.Code("VERIFY_EMAIL_FAILED").
				With("operation", "mark credential verified").
				Wrap(err)
		}
	}

	sessionToken, err = s.sessions.Create(ctx, account.ID)
	if err != nil {
		return "", err
	}
	return sessionToken, nil
}

// ResendVerification re-issues a verification email for the account
// behind an authenticated session. A no-op if the account is already
// verified or has no local credential.
func (s *Service) ResendVerification(ctx context.Context, sessionToken string) error {
	session, err := s.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return oops.Code("RESEND_VERIFICATION_FAILED").
			With("operation", "get account").
			Wrap(err)
	}

	cred, err := s.accounts.GetCredential(ctx, account.ID, ProviderLocal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESEND_VERIFICATION_FAILED").
			With("operation", "get local credential").
			Wrap(err)
	}
	if cred.IsVerified {
		return nil
	}

	token, err := s.signer.Sign(account.Email)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerification(ctx, account.Email, s.verificationLink(token)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("operation", "send verification email").
			Wrap(err)
	}
	return nil
}

// GetSessionUser resolves a session token to the account's read
// projection, including the verified flag and provider derived from the
// account's credential. Every authenticated request on the transport goes
// through here.
func (s *Service) GetSessionUser(ctx context.Context, sessionToken string) (*AccountView, error) {
	session, err := s.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUnauthorized).Errorf("invalid session token")
		}
		return nil, oops.Code("SESSION_USER_FAILED").
			With("operation", "get account").
			Wrap(err)
	}

	creds, err := s.accounts.GetCredentials(ctx, account.ID)
	if err != nil {
		return nil, oops.Code("SESSION_USER_FAILED").
			With("operation", "get credentials").
			Wrap(err)
	}

	view := &AccountView{
		Email:     account.Email,
		Username:  account.Username,
		AvatarURL: account.AvatarURL,
		CreatedAt: account.CreatedAt,
	}
	// Single-provider rule: the account's one credential is authoritative.
	if len(creds) > 0 {
		view.Provider = creds[0].Provider
		view.IsVerified = creds[0].IsVerified
	}
	return view, nil
}

// localCredential fetches the account and its local credential for an
// email. Both lookups must succeed; either miss surfaces as ErrNotFound.
func (s *Service) localCredential(ctx context.Context, email string) (*Account, *Credential, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	cred, err := s.accounts.GetCredential(ctx, account.ID, ProviderLocal)
	if err != nil {
		return nil, nil, err
	}
	return account, cred, nil
}

// sendVerification signs and sends a verification email, best effort.
func (s *Service) sendVerification(ctx context.Context, email string) {
	token, err := s.signer.Sign(email)
	if err != nil {
		errutil.LogError(s.logger, "failed to sign verification token", err)
		return
	}
	if err := s.mailer.SendVerification(ctx, email, s.verificationLink(token)); err != nil {
		errutil.LogError(s.logger, "failed to send verification email", err)
	}
}

func (s *Service) verificationLink(token string) string {
	base := strings.TrimSuffix(s.opts.VerificationBaseURL, "/")
	return fmt.Sprintf("%s/user/verify?token=%s", base, url.QueryEscape(token))
}
