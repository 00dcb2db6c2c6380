// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Verification token configuration.
const (
	// DefaultVerificationTTL is the lifetime of an email verification
	// token. Short on purpose: the token substitutes for a password.
	DefaultVerificationTTL = time.Hour

	// DefaultTokenIssuer is stamped into the iss claim.
	DefaultTokenIssuer = "accountd"
)

// verificationClaims binds a verification token to an email address.
type verificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies compact signed tokens proving control of
// an email address. Tokens are HMAC-signed with a symmetric secret held in
// process configuration.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenSigner creates a TokenSigner. A non-positive ttl falls back to
// DefaultVerificationTTL and an empty issuer to DefaultTokenIssuer.
func NewTokenSigner(secret []byte, ttl time.Duration, issuer string) (*TokenSigner, error) {
	if len(secret) == 0 {
		return nil, oops.Errorf("verification token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	if issuer == "" {
		issuer = DefaultTokenIssuer
	}
	return &TokenSigner{secret: secret, ttl: ttl, issuer: issuer, now: time.Now}, nil
}

// Sign issues a verification token bound to the given email address.
func (s *TokenSigner) Sign(email string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, verificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify checks a token's signature and expiry and returns the bound
// email. Bad signature, wrong algorithm, and expiry all map to
// CodeInvalidToken.
func (s *TokenSigner) Verify(tokenString string) (string, error) {
	claims := &verificationClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return "", oops.Code(CodeInvalidToken).
			With("operation", "parse verification token").
			Wrap(err)
	}
	if !token.Valid || claims.Email == "" {
		return "", oops.Code(CodeInvalidToken).Errorf("invalid verification token")
	}
	return claims.Email, nil
}
