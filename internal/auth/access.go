// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Decision is the outcome of an access check for a protected resource.
// When Allow is false, UserID is the zero ULID.
type Decision struct {
	Allow  bool
	UserID ulid.ULID
}

// Deny is the zero Decision.
var Deny = Decision{}

// Decide maps a request's session token to ALLOW or DENY. It denies when
// the token is absent, the session is unknown or expired, or the session
// store fails - a broken store must fail closed, never open.
//
// Protected handlers call this explicitly at the top rather than relying on
// middleware, keeping the authentication check a visible function call.
func (m *SessionManager) Decide(ctx context.Context, token string) Decision {
	if token == "" {
		return Deny
	}

	userID, err := m.Validate(ctx, token)
	if err != nil {
		return Deny
	}

	return Decision{Allow: true, UserID: userID}
}
