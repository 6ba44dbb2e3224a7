// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package httpapi binds the authentication core to HTTP. The session
// identifier travels in a signed cookie; every protected handler calls the
// access decision explicitly at its top rather than relying on middleware.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/observability"
)

// Config controls the HTTP server and session cookie.
type Config struct {
	Addr string

	// CookieName is the session cookie name.
	CookieName string

	// CookieSecure sets the Secure attribute on the session cookie.
	CookieSecure bool

	// SessionSecret signs the session cookie value. Secret input; a
	// tampered cookie fails decoding and is treated as an absent session.
	SessionSecret []byte
}

// Server serves the authentication endpoints.
type Server struct {
	cfg      Config
	engine   *auth.Engine
	sessions *auth.SessionManager
	codec    *securecookie.SecureCookie
	metrics  *observability.Metrics
	logger   *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates the HTTP server. metrics may be nil when observability
// is disabled.
func NewServer(cfg Config, engine *auth.Engine, sessions *auth.SessionManager, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, oops.Code("HTTP_INVALID_DEPENDENCY").Errorf("authentication engine is required")
	}
	if sessions == nil {
		return nil, oops.Code("HTTP_INVALID_DEPENDENCY").Errorf("session manager is required")
	}
	if len(cfg.SessionSecret) == 0 {
		return nil, oops.Code("HTTP_INVALID_DEPENDENCY").Errorf("session secret is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "gk_session"
	}
	if logger == nil {
		logger = slog.Default()
	}

	// HMAC-signed cookie value, no encryption: the token itself is opaque
	// random material, signing only prevents forgery of the envelope.
	codec := securecookie.New(cfg.SessionSecret, nil)
	codec.MaxAge(int(sessions.TTL().Seconds()))

	return &Server{
		cfg:      cfg,
		engine:   engine,
		sessions: sessions,
		codec:    codec,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Router builds the route table. Exposed for tests via httptest.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/secret", s.handleSecret).Methods(http.MethodGet)
	return r
}

// Start begins serving. It returns an error channel that receives any error
// from the HTTP server after startup; the channel is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("http server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_http_server").Wrap(err)
		}
	}

	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
