// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package auth implements the credential authentication core: password
// hashing, credential verification, session lifecycle, and the access
// decision derived from session state.
//
// # Domain Types
//
// Domain types (User, Session) should be created using their respective
// constructors:
//   - NewUser - creates a User with a validated username and password hash
//   - NewSession - creates a Session bound to a user with a fixed expiry
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Engine - registration and credential verification
//   - SessionManager - session create, validate, destroy, and expiry sweep
//
// Expected outcomes are reported as sentinel errors (ErrInvalidCredentials,
// ErrUsernameTaken, ErrSessionNotFound, ErrSessionExpired); everything else
// is an internal failure carrying an oops error code.
package auth
