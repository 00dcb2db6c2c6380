// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/pkg/errutil"
)

// statusForCode maps service error codes to HTTP statuses. Codes not
// listed here are treated as internal failures.
var statusForCode = map[string]int{
	identity.CodeValidationFailed:          http.StatusBadRequest,
	identity.CodeWeakPassword:              http.StatusBadRequest,
	identity.CodeEmailConflict:             http.StatusBadRequest,
	identity.CodeProviderConflict:          http.StatusBadRequest,
	identity.CodeInvalidCredentials:        http.StatusBadRequest,
	identity.CodeEmailNotVerified:          http.StatusBadRequest,
	identity.CodeNotRegisteredWithPassword: http.StatusBadRequest,
	identity.CodeInvalidToken:              http.StatusBadRequest,
	identity.CodeSessionLimit:              http.StatusBadRequest,
	identity.CodeUnauthorized:              http.StatusUnauthorized,
	identity.CodeSessionExpired:            http.StatusUnauthorized,
	identity.CodeNotFound:                  http.StatusNotFound,
}

// errorBody is the uniform JSON error response.
type errorBody struct {
	Error string `json:"error"`
}

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure means the client went away
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to an HTTP response. Known codes keep
// their safe user-facing message; everything else becomes a generic 500
// and the original cause is logged.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, isString := oopsErr.Code().(string); isString {
			if status, known := statusForCode[code]; known {
				writeJSON(w, status, errorBody{Error: oopsErr.Error()})
				return
			}
		}
	}

	errutil.LogError(logger, "request failed", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}
