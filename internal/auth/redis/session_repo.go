// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package redis implements the session repository over Redis, with
// server-side TTL eviction standing in for the expiry sweep.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// keyPrefix namespaces session keys in a shared Redis instance.
const keyPrefix = "sess:"

// sessionRecord is the JSON shape stored per session key.
type sessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"token_hash"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRepository implements auth.SessionRepository using Redis.
// Each session is a single key, so reads and writes for one token hash are
// ordered by Redis itself (read-your-writes per key).
type SessionRepository struct {
	client redis.UniversalClient
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(client redis.UniversalClient) *SessionRepository {
	return &SessionRepository{client: client}
}

// SessionKey returns the Redis key for a token hash.
func SessionKey(tokenHash string) string {
	return keyPrefix + tokenHash
}

// Create stores a new session. The key expires at the session's ExpiresAt,
// so Redis evicts it without an application-side sweep.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	rec := sessionRecord{
		ID:        session.ID.String(),
		UserID:    session.UserID.String(),
		TokenHash: session.TokenHash,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "marshal session").
			Wrap(err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		// Already expired; storing it would be immediately evicted anyway,
		// but a zero TTL would persist the key forever.
		ttl = time.Millisecond
	}

	if err := r.client.Set(ctx, SessionKey(session.TokenHash), payload, ttl).Err(); err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session key").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	payload, err := r.client.Get(ctx, SessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session key").
			Wrap(err)
	}

	return unmarshalSession(payload)
}

// Delete removes a session by token hash.
func (r *SessionRepository) Delete(ctx context.Context, tokenHash string) error {
	removed, err := r.client.Del(ctx, SessionKey(tokenHash)).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session key").
			Wrap(err)
	}
	if removed == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op: Redis evicts keys at their TTL, so there is
// nothing to sweep. Always returns 0.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

func unmarshalSession(payload []byte) (*auth.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "unmarshal session").
			Wrap(err)
	}

	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", rec.ID).
			Wrap(err)
	}

	userID, err := ulid.Parse(rec.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", rec.UserID).
			Wrap(err)
	}

	return &auth.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: rec.TokenHash,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
