// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/samber/oops"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/accountd/accountd/internal/identity"
	"github.com/accountd/accountd/pkg/errutil"
)

const (
	stateCookieName = "oauth_state"
	nonceCookieName = "oauth_nonce"

	// handshakeTTL bounds how long a started OAuth flow stays valid.
	handshakeTTL = 10 * time.Minute
)

// GoogleConfig carries the Google OAuth client settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// GoogleAuth performs the Google OAuth handshake. The verified profile is
// handed to the identity service as a plain struct; no provider types
// leak past this package.
type GoogleAuth struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// NewGoogleAuth discovers Google's OIDC endpoints and builds the OAuth
// client.
func NewGoogleAuth(ctx context.Context, cfg GoogleConfig) (*GoogleAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, oops.Errorf("google client credentials are required")
	}
	if cfg.RedirectURL == "" {
		return nil, oops.Errorf("google redirect URL is required")
	}

	provider, err := oidc.NewProvider(ctx, "https://accounts.google.com")
	if err != nil {
		return nil, oops.Code("OIDC_DISCOVERY_FAILED").Wrap(err)
	}

	return &GoogleAuth{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// googleClaims is the subset of the ID token this service reads.
type googleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Nonce         string `json:"nonce"`
}

// handleGoogleAuth starts the OAuth flow: state and nonce go into
// short-lived cookies, the browser goes to the consent screen.
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	nonce, err := randomToken()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.setHandshakeCookie(w, stateCookieName, state, handshakeTTL)
	s.setHandshakeCookie(w, nonceCookieName, nonce, handshakeTTL)

	authURL := s.google.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// handleGoogleCallback finishes the handshake and logs the user in. A
// browser flow cannot consume JSON errors, so failures redirect to the
// error page with a human-readable message.
func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		s.redirectOAuthError(w, r, "sign-in was cancelled or the callback was malformed")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		s.redirectOAuthError(w, r, "sign-in session did not match, please try again")
		return
	}
	nonceCookie, err := r.Cookie(nonceCookieName)
	if err != nil || nonceCookie.Value == "" {
		s.redirectOAuthError(w, r, "sign-in session expired, please try again")
		return
	}

	s.setHandshakeCookie(w, stateCookieName, "", -1)
	s.setHandshakeCookie(w, nonceCookieName, "", -1)

	token, err := s.google.oauthConfig.Exchange(ctx, code)
	if err != nil {
		errutil.LogError(s.logger, "oauth code exchange failed", err)
		s.redirectOAuthError(w, r, "could not complete sign-in with Google")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		s.redirectOAuthError(w, r, "could not complete sign-in with Google")
		return
	}

	idToken, err := s.google.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		errutil.LogError(s.logger, "id token verification failed", err)
		s.redirectOAuthError(w, r, "could not complete sign-in with Google")
		return
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		errutil.LogError(s.logger, "id token claims decode failed", err)
		s.redirectOAuthError(w, r, "could not complete sign-in with Google")
		return
	}
	if claims.Sub == "" || claims.Email == "" || !claims.EmailVerified {
		s.redirectOAuthError(w, r, "your Google account email is not verified")
		return
	}
	if claims.Nonce == "" || claims.Nonce != nonceCookie.Value {
		s.redirectOAuthError(w, r, "sign-in session did not match, please try again")
		return
	}

	sessionToken, err := s.svc.LoginOrRegisterOAuth(ctx, identity.OAuthProfile{
		Email:       claims.Email,
		Subject:     claims.Sub,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	})
	if err != nil {
		s.redirectOAuthError(w, r, safeMessage(err))
		return
	}

	s.setSessionCookie(w, sessionToken)
	http.Redirect(w, r, s.successRedirect, http.StatusSeeOther)
}

// setHandshakeCookie writes a short-lived cookie for the OAuth flow.
// maxAge < 0 deletes the cookie.
func (s *Server) setHandshakeCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, cookie)
}

// redirectOAuthError sends the browser to the error page with the message
// in the "error" query parameter.
func (s *Server) redirectOAuthError(w http.ResponseWriter, r *http.Request, msg string) {
	target := s.errorRedirect
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set("error", msg)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeMessage returns the user-facing message of a coded service error,
// or a generic one for unexpected failures.
func safeMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, isString := oopsErr.Code().(string); isString {
			if _, known := statusForCode[code]; known {
				return oopsErr.Error()
			}
		}
	}
	return "sign-in failed, please try again"
}

// randomToken returns a URL-safe random string for state/nonce values.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("RANDOM_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
