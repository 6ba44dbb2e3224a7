// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Engine verifies credentials and registers new users. It only ever reads
// the credential store during authentication; registration is its sole write.
type Engine struct {
	creds  CredentialRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(creds CredentialRepository, hasher PasswordHasher) (*Engine, error) {
	return NewEngineWithLogger(creds, hasher, slog.Default())
}

// NewEngineWithLogger creates a new Engine with a custom logger.
func NewEngineWithLogger(creds CredentialRepository, hasher PasswordHasher, logger *slog.Logger) (*Engine, error) {
	if creds == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	return &Engine{creds: creds, hasher: hasher, logger: logger}, nil
}

// Register creates a new user with a freshly hashed password.
// Returns ErrUsernameTaken if the username is already registered. The
// credential store's uniqueness constraint is the source of truth for that
// decision; concurrent registrations of the same username resolve to exactly
// one winner at insert time.
func (e *Engine) Register(ctx context.Context, username, password string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		// Hashing failure (entropy exhaustion, empty password) is fatal to
		// the request; there is no insecure fallback.
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(username, hash)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	if err := e.creds.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", username).
				Wrap(ErrUsernameTaken)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	e.logger.Info("user registered", "user_id", user.ID.String(), "username", username)
	return user, nil
}

// Authenticate verifies a username/password pair and returns the user ID on
// success. Unknown usernames and wrong passwords both return
// ErrInvalidCredentials; an equivalent amount of hashing work is performed
// for unknown usernames so response time does not reveal which it was.
// Store or hasher failures are reported as distinct internal errors.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (ulid.ULID, error) {
	user, lookupErr := e.creds.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			return ulid.ULID{}, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := e.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !userExists {
			return ulid.ULID{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return ulid.ULID{}, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return ulid.ULID{}, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	e.logger.Info("user authenticated", "user_id", user.ID.String())
	return user.ID, nil
}
