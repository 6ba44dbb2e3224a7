// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

// Outcome labels for the attempt counters.
const (
	outcomeSuccess = "success"
	outcomeTaken   = "taken"
	outcomeInvalid = "invalid"
	outcomeDenied  = "denied"
	outcomeAllowed = "allowed"
	outcomeError   = "error"
)

// credentialsRequest is the request body for register and login.
// The password only ever lives in this transient value; it is never logged
// or persisted.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.engine.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUsernameTaken):
			// Username existence is not secret; "taken" is reported, unlike
			// login failures which stay uniform.
			s.countRegistration(outcomeTaken)
			writeError(w, http.StatusBadRequest, "username taken")
		case isClientInputError(err):
			s.countRegistration(outcomeInvalid)
			writeError(w, http.StatusBadRequest, "invalid username or password")
		default:
			s.countRegistration(outcomeError)
			errutil.LogError(s.logger, "registration failed", err)
			writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
		}
		return
	}

	s.countRegistration(outcomeSuccess)
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID.String()})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, err := s.engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			// Uniform body whether the username or the password was wrong.
			s.countLogin(outcomeInvalid)
			writeError(w, http.StatusUnauthorized, "login failure")
			return
		}
		s.countLogin(outcomeError)
		errutil.LogError(s.logger, "login failed", err)
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
		return
	}

	token, session, err := s.sessions.Create(r.Context(), userID)
	if err != nil {
		s.countLogin(outcomeError)
		errutil.LogError(s.logger, "session creation failed", err)
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
		return
	}

	if err := s.setSessionCookie(w, token); err != nil {
		s.countLogin(outcomeError)
		errutil.LogError(s.logger, "session cookie encoding failed", err)
		// The session was persisted but cannot reach the client; destroy it
		// rather than leaving an orphan the sweep has to collect.
		_ = s.sessions.Destroy(r.Context(), token) //nolint:errcheck // Best effort cleanup
		writeError(w, http.StatusInternalServerError, "something went wrong, please try again")
		return
	}

	s.countLogin(outcomeSuccess)
	s.logger.Info("login succeeded",
		"user_id", userID.String(),
		"session_id", session.ID.String(),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(r)
	if token != "" {
		if err := s.sessions.Destroy(r.Context(), token); err != nil {
			// Logout always succeeds from the caller's perspective; the
			// record is expiry-bounded even if this delete failed.
			errutil.LogError(s.logger, "session destroy failed", err)
		}
	}

	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSecret(w http.ResponseWriter, r *http.Request) {
	decision := s.sessions.Decide(r.Context(), s.sessionToken(r))
	if !decision.Allow {
		s.countValidation(outcomeDenied)
		writeError(w, http.StatusUnauthorized, "you need to sign in")
		return
	}

	s.countValidation(outcomeAllowed)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PRIVATE INFO",
		"user_id": decision.UserID.String(),
	})
}

// isClientInputError reports whether err is a validation failure the client
// caused, as opposed to an internal fault.
func isClientInputError(err error) bool {
	if errors.Is(err, auth.ErrEmptyPassword) {
		return true
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		return oopsErr.Code() == "AUTH_INVALID_USERNAME"
	}
	return false
}

func (s *Server) countRegistration(outcome string) {
	if s.metrics != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.SessionValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
