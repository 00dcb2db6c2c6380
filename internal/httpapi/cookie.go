// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package httpapi

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie carrying the plaintext session token.
const SessionCookieName = "session_token"

// setSessionCookie attaches the session token to the response. The cookie
// max-age is deliberately independent of the server-side session TTL.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(s.cookieTTL),
	})
}

// clearSessionCookie expires the session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionTokenFromRequest extracts the session token from the request
// cookie. Returns "" when the cookie is absent.
func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
