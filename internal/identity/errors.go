// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package identity

import "errors"

// Sentinel errors returned by repositories. Service code wraps them with
// oops codes that the transport maps to HTTP statuses.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert hits a unique constraint.
	// The constraint is the authoritative uniqueness guarantee; callers
	// must map this to a conflict outcome, never a generic failure.
	ErrDuplicate = errors.New("duplicate record")
)

// Error codes attached to service errors via oops. The transport boundary
// translates these to HTTP statuses; anything without a known code is a 500.
const (
	CodeValidationFailed          = "VALIDATION_FAILED"
	CodeWeakPassword              = "WEAK_PASSWORD"
	CodeEmailConflict             = "EMAIL_CONFLICT"
	CodeProviderConflict          = "PROVIDER_CONFLICT"
	CodeInvalidCredentials        = "INVALID_CREDENTIALS"
	CodeEmailNotVerified          = "EMAIL_NOT_VERIFIED"
	CodeNotRegisteredWithPassword = "NOT_REGISTERED_WITH_PASSWORD"
	CodeInvalidToken              = "INVALID_TOKEN"
	CodeSessionLimit              = "SESSION_LIMIT"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeSessionExpired            = "SESSION_EXPIRED"
	CodeNotFound                  = "NOT_FOUND"
)
