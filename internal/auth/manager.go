// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionManager owns the session-record lifecycle: create on login,
// validate on access, destroy on logout or expiry. A session moves
// CREATED -> ACTIVE -> {EXPIRED | DESTROYED}; terminal states are enforced
// by deleting the record, so no transition back to ACTIVE is possible.
type SessionManager struct {
	sessions SessionRepository
	ttl      time.Duration
	logger   *slog.Logger
}

// NewSessionManager creates a SessionManager with the given TTL.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewSessionManager(sessions SessionRepository, ttl time.Duration) (*SessionManager, error) {
	return NewSessionManagerWithLogger(sessions, ttl, slog.Default())
}

// NewSessionManagerWithLogger creates a SessionManager with a custom logger.
func NewSessionManagerWithLogger(sessions SessionRepository, ttl time.Duration, logger *slog.Logger) (*SessionManager, error) {
	if sessions == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("session repository is required")
	}
	if logger == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{sessions: sessions, ttl: ttl, logger: logger}, nil
}

// TTL returns the fixed session time-to-live.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create issues a new session for the user and returns the plaintext token
// for transport to the client. Only the token's hash is persisted.
func (m *SessionManager) Create(ctx context.Context, userID ulid.ULID) (string, *Session, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(userID, tokenHash, time.Now().Add(m.ttl))
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	m.logger.Info("session created",
		"session_id", session.ID.String(),
		"user_id", userID.String(),
		"expires_at", session.ExpiresAt,
	)
	return token, session, nil
}

// Validate resolves a session token to the user it was issued for.
// Returns ErrSessionNotFound for unknown or destroyed sessions and
// ErrSessionExpired for sessions past their TTL. An expired record is
// deleted eagerly, so the next Validate for the same token reports
// ErrSessionNotFound. The TTL is never extended on access.
func (m *SessionManager) Validate(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("SESSION_NOT_FOUND").Wrap(ErrSessionNotFound)
	}

	tokenHash := HashSessionToken(token)

	session, err := m.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("SESSION_NOT_FOUND").Wrap(ErrSessionNotFound)
		}
		return ulid.ULID{}, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpired() {
		// Eager cleanup: an expired session must never validate again.
		if delErr := m.sessions.Delete(ctx, tokenHash); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			m.logger.Warn("failed to delete expired session",
				"session_id", session.ID.String(),
				"error", delErr,
			)
		}
		return ulid.ULID{}, oops.Code("SESSION_EXPIRED").
			With("session_id", session.ID.String()).
			Wrap(ErrSessionExpired)
	}

	return session.UserID, nil
}

// Destroy removes the session for the given token. Idempotent: destroying a
// nonexistent or already-destroyed session is not an error.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	tokenHash := HashSessionToken(token)

	if err := m.sessions.Delete(ctx, tokenHash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// SweepExpired removes all expired sessions and returns the count removed.
func (m *SessionManager) SweepExpired(ctx context.Context) (int64, error) {
	removed, err := m.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	if removed > 0 {
		m.logger.Info("expired sessions swept", "removed", removed)
	}
	return removed, nil
}

// Sweeper periodically removes expired sessions so the store does not grow
// unbounded. Correctness does not depend on it: Validate deletes expired
// records eagerly regardless of sweep cadence.
type Sweeper struct {
	manager  *SessionManager
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(removed int64)
}

// NewSweeper creates a Sweeper. A non-positive interval defaults to the
// session TTL. onSweep, if non-nil, observes the count removed per sweep
// (used for metrics).
func NewSweeper(manager *SessionManager, interval time.Duration, logger *slog.Logger, onSweep func(removed int64)) (*Sweeper, error) {
	if manager == nil {
		return nil, oops.Code("SESSION_INVALID_DEPENDENCY").Errorf("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = manager.TTL()
	}
	return &Sweeper{manager: manager, interval: interval, logger: logger, onSweep: onSweep}, nil
}

// Run sweeps on a fixed interval until the context is cancelled.
// It blocks; callers run it in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.manager.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.logger.Error("session sweep failed", "error", err)
				continue
			}
			if s.onSweep != nil {
				s.onSweep(removed)
			}
		}
	}
}
