// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import (
	"unicode"

	"github.com/samber/oops"
)

// PasswordPolicy is the configurable strength policy applied at
// registration and password reset.
type PasswordPolicy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSymbol  bool
	MaxLength      int // 0 means DefaultMaxPasswordLength
}

// DefaultMaxPasswordLength bounds input handed to bcrypt, which silently
// truncates past 72 bytes.
const DefaultMaxPasswordLength = 72

// DefaultPasswordPolicy mirrors the classic "8+ chars, all four classes"
// rule.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireDigit:  true,
		RequireSymbol: true,
	}
}

// Validate checks a plaintext password against the policy. The returned
// error carries CodeWeakPassword and a message safe to show to users.
func (p PasswordPolicy) Validate(password string) error {
	maxLen := p.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxPasswordLength
	}
	if len(password) < p.MinLength {
		return oops.Code(CodeWeakPassword).
			With("min", p.MinLength).
			Errorf("password must be at least %d characters", p.MinLength)
	}
	if len(password) > maxLen {
		return oops.Code(CodeWeakPassword).
			With("max", maxLen).
			Errorf("password must be at most %d characters", maxLen)
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if p.RequireUpper && !hasUpper {
		return oops.Code(CodeWeakPassword).Errorf("password must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		return oops.Code(CodeWeakPassword).Errorf("password must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		return oops.Code(CodeWeakPassword).Errorf("password must contain a digit")
	}
	if p.RequireSymbol && !hasSymbol {
		return oops.Code(CodeWeakPassword).Errorf("password must contain a symbol")
	}
	return nil
}
