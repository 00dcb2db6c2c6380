// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 accountd Contributors

// Package httpapi is the transport boundary: JSON handlers over the
// identity service, session cookie handling, and the Google OAuth
// handshake.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/identity"
)

// maxBodyBytes caps request bodies. Identity payloads are tiny.
const maxBodyBytes = 1 << 20

// DefaultCookieTTL is the session cookie max-age. The server-side session
// outlives it so a client can present the token from other storage.
const DefaultCookieTTL = 24 * time.Hour

// IdentityService is the surface of the identity service the handlers
// call. Declared here so handler tests can substitute a mock.
type IdentityService interface {
	RegisterLocal(ctx context.Context, email, password string) error
	LoginLocal(ctx context.Context, email, password string) (string, error)
	LoginOrRegisterOAuth(ctx context.Context, profile identity.OAuthProfile) (string, error)
	Logout(ctx context.Context, sessionToken string) error
	ResetPassword(ctx context.Context, email, oldPassword, newPassword string) error
	VerifyEmail(ctx context.Context, token string) (string, error)
	ResendVerification(ctx context.Context, sessionToken string) error
	GetSessionUser(ctx context.Context, sessionToken string) (*identity.AccountView, error)
}

// Config carries the transport settings for a Server.
type Config struct {
	// Addr is the listen address in "host:port" format.
	Addr string

	// CookieSecure sets the Secure attribute on session cookies. Only
	// disable for plain-HTTP development setups.
	CookieSecure bool

	// CookieTTL is the session cookie max-age. Zero means DefaultCookieTTL.
	CookieTTL time.Duration

	// SuccessRedirect is where the browser lands after OAuth login or
	// email verification. Defaults to "/".
	SuccessRedirect string

	// ErrorRedirect is where failed OAuth callbacks land; the failure
	// message is appended as an "error" query parameter. Defaults to "/".
	ErrorRedirect string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the identity HTTP API.
type Server struct {
	addr            string
	svc             IdentityService
	google          *GoogleAuth
	logger          *slog.Logger
	cookieSecure    bool
	cookieTTL       time.Duration
	successRedirect string
	errorRedirect   string

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server. google may be nil, in which case the OAuth
// routes are not registered.
func NewServer(svc IdentityService, google *GoogleAuth, cfg Config, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, oops.Errorf("identity service is required")
	}
	if cfg.Addr == "" {
		return nil, oops.Errorf("listen address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = DefaultCookieTTL
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/"
	}

	s := &Server{
		addr:            cfg.Addr,
		svc:             svc,
		google:          google,
		logger:          logger,
		cookieSecure:    cfg.CookieSecure,
		cookieTTL:       cfg.CookieTTL,
		successRedirect: cfg.SuccessRedirect,
		errorRedirect:   cfg.ErrorRedirect,
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/user/me", s.handleMe)
	mux.HandleFunc("POST /api/user/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /api/user/resend-verify-email", s.handleResendVerification)
	mux.HandleFunc("GET /user/verify", s.handleVerifyEmail)

	if s.google != nil {
		mux.HandleFunc("GET /api/auth/google/auth", s.handleGoogleAuth)
		mux.HandleFunc("GET /api/auth/google/callback", s.handleGoogleCallback)
	}

	return mux
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. It returns an error channel that receives any
// error from the HTTP server after startup; the channel is closed on
// graceful shutdown.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := s.httpServer
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.With("operation", "shutdown_api_server").Wrap(err)
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on, or "" when not
// running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return oops.Code(identity.CodeValidationFailed).Errorf("malformed request body")
	}
	return nil
}

// statusBody is the uniform JSON success response for mutations that
// return no data.
type statusBody struct {
	Status string `json:"status"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := s.svc.RegisterLocal(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	token, err := s.svc.LoginLocal(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)

	// The cookie is cleared whatever the service says: a client that asks
	// to log out must not keep the token.
	s.clearSessionCookie(w)

	if token == "" {
		writeError(w, s.logger, oops.Code(identity.CodeUnauthorized).Errorf("not authenticated"))
		return
	}
	if err := s.svc.Logout(r.Context(), token); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		writeError(w, s.logger, oops.Code(identity.CodeUnauthorized).Errorf("not authenticated"))
		return
	}

	view, err := s.svc.GetSessionUser(r.Context(), token)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type resetPasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		writeError(w, s.logger, oops.Code(identity.CodeUnauthorized).Errorf("not authenticated"))
		return
	}

	var req resetPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	// The target account comes from the session, never from the caller.
	view, err := s.svc.GetSessionUser(r.Context(), token)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := s.svc.ResetPassword(r.Context(), view.Email, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		writeError(w, s.logger, oops.Code(identity.CodeUnauthorized).Errorf("not authenticated"))
		return
	}

	if err := s.svc.ResendVerification(r.Context(), token); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

// handleVerifyEmail is the target of the link in the verification mail.
// Success logs the user in and sends the browser to the app.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, s.logger, oops.Code(identity.CodeInvalidToken).Errorf("verification token is missing"))
		return
	}

	sessionToken, err := s.svc.VerifyEmail(r.Context(), token)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.setSessionCookie(w, sessionToken)
	http.Redirect(w, r, s.successRedirect, http.StatusSeeOther)
}
