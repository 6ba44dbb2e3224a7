// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import "errors"

// Sentinel errors for expected, recoverable outcomes. Callers match these
// with errors.Is; anything else crossing the package boundary is an internal
// failure and must not be shown to clients.
var (
	// ErrNotFound is returned by repositories when a requested record does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned for a bad username or password.
	// The two causes are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUsernameTaken is returned when registering a username that already
	// exists. Backed by the store's uniqueness constraint, not by a
	// check-then-insert race.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrSessionNotFound is returned when validating an unknown or
	// destroyed session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned exactly once per expired session; the
	// record is deleted eagerly, so later validations report ErrSessionNotFound.
	ErrSessionExpired = errors.New("session expired")
)
