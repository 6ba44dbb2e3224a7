// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/samber/oops"
)

// setSessionCookie writes the signed session cookie. The raw token is
// encoded and HMAC-signed with the session secret so a client cannot forge
// or splice cookie values.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) error {
	encoded, err := s.codec.Encode(s.cfg.CookieName, token)
	if err != nil {
		return oops.Code("HTTP_COOKIE_ENCODE_FAILED").Wrap(err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// clearSessionCookie expires the session cookie on the client.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken extracts and verifies the session token from the request
// cookie. Absent, unsigned, or tampered cookies all yield "" - an absent
// session, which every caller maps to DENY.
func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cfg.CookieName)
	if err != nil {
		if !errors.Is(err, http.ErrNoCookie) {
			s.logger.Debug("session cookie read failed", "error", err)
		}
		return ""
	}

	var token string
	if err := s.codec.Decode(s.cfg.CookieName, cookie.Value, &token); err != nil {
		s.logger.Debug("session cookie rejected", "error", err)
		return ""
	}
	return token
}
