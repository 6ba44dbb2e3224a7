// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package authtest provides in-memory repository implementations for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeep/gatekeep/internal/auth"
)

// MemoryCredentialRepository is a thread-safe in-memory
// auth.CredentialRepository. It enforces case-insensitive username
// uniqueness under its own lock, mirroring the unique index the PostgreSQL
// backend relies on, so concurrent registration races resolve the same way.
type MemoryCredentialRepository struct {
	mu    sync.Mutex
	users map[string]*auth.User // keyed by lowercased username
}

// NewMemoryCredentialRepository creates an empty repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{users: make(map[string]*auth.User)}
}

// Create stores a user, failing with auth.ErrUsernameTaken on a duplicate
// username. The check and insert happen under one lock, like a database
// constraint: exactly one concurrent caller wins.
func (r *MemoryCredentialRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, exists := r.users[key]; exists {
		return auth.ErrUsernameTaken
	}
	u := *user
	r.users[key] = &u
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryCredentialRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == id {
			userCopy := *u
			return &userCopy, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByUsername retrieves a user by username (case-insensitive).
func (r *MemoryCredentialRepository) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// MemorySessionRepository is a thread-safe in-memory auth.SessionRepository
// keyed by token hash.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

// NewMemorySessionRepository creates an empty repository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*auth.Session)}
}

// Create stores a session.
func (r *MemorySessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := *session
	r.sessions[session.TokenHash] = &s
	return nil
}

// GetByTokenHash retrieves a session by token hash.
func (r *MemorySessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[tokenHash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	sessionCopy := *s
	return &sessionCopy, nil
}

// Delete removes a session by token hash.
func (r *MemorySessionRepository) Delete(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[tokenHash]; !ok {
		return auth.ErrNotFound
	}
	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *MemorySessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for hash, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// TokenHashes returns the token hashes of all stored sessions.
func (r *MemorySessionRepository) TokenHashes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	hashes := make([]string, 0, len(r.sessions))
	for hash := range r.sessions {
		hashes = append(hashes, hash)
	}
	return hashes
}

// Len returns the number of stored sessions.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Compile-time interface checks.
var (
	_ auth.CredentialRepository = (*MemoryCredentialRepository)(nil)
	_ auth.SessionRepository    = (*MemorySessionRepository)(nil)
)
