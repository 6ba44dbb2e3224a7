// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Run("generates secure token", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		assert.Len(t, token, 64) // 32 bytes hex-encoded
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, token, hash)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, hash1, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		token2, hash2, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		assert.NotEqual(t, token1, token2)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("hash is SHA256 hex-encoded", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		// SHA256 produces 32 bytes = 64 hex chars
		assert.Len(t, hash, 64)
	})
}

func TestHashSessionToken(t *testing.T) {
	t.Run("produces consistent hash", func(t *testing.T) {
		token := "testtoken123"
		hash1 := auth.HashSessionToken(token)
		hash2 := auth.HashSessionToken(token)
		assert.Equal(t, hash1, hash2)
	})

	t.Run("produces different hashes for different tokens", func(t *testing.T) {
		hash1 := auth.HashSessionToken("token1")
		hash2 := auth.HashSessionToken("token2")
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestVerifySessionToken(t *testing.T) {
	t.Run("verifies correct token", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		valid, err := auth.VerifySessionToken(token, hash)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("rejects incorrect token", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		valid, err := auth.VerifySessionToken("wrongtoken", hash)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("returns error for empty token", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		valid, err := auth.VerifySessionToken("", hash)
		assert.Error(t, err)
		assert.False(t, valid)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_EMPTY")
	})

	t.Run("returns error for empty hash", func(t *testing.T) {
		token, _, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		valid, err := auth.VerifySessionToken(token, "")
		assert.Error(t, err)
		assert.False(t, valid)
		errutil.AssertErrorCode(t, err, "SESSION_HASH_EMPTY")
	})
}

func TestSession_IsExpiredAt(t *testing.T) {
	userID := ulid.Make()
	baseTime := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	t.Run("not expired when check time is before expiry", func(t *testing.T) {
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    userID,
			TokenHash: "somehash",
			CreatedAt: baseTime,
			ExpiresAt: baseTime.Add(time.Hour),
		}
		assert.False(t, session.IsExpiredAt(baseTime.Add(30*time.Minute)))
	})

	t.Run("expired when check time is after expiry", func(t *testing.T) {
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    userID,
			TokenHash: "somehash",
			CreatedAt: baseTime,
			ExpiresAt: baseTime.Add(time.Hour),
		}
		assert.True(t, session.IsExpiredAt(baseTime.Add(2*time.Hour)))
	})

	t.Run("not expired when check time equals expiry", func(t *testing.T) {
		expiryTime := baseTime.Add(time.Hour)
		session := &auth.Session{
			ID:        ulid.Make(),
			UserID:    userID,
			TokenHash: "somehash",
			CreatedAt: baseTime,
			ExpiresAt: expiryTime,
		}
		// time.After returns false when times are equal
		assert.False(t, session.IsExpiredAt(expiryTime))
	})
}

func TestNewSession(t *testing.T) {
	validUserID := ulid.Make()
	validHash := "abc123def456"
	validExpiry := time.Now().Add(time.Hour)

	t.Run("creates valid session", func(t *testing.T) {
		session, err := auth.NewSession(validUserID, validHash, validExpiry)
		require.NoError(t, err)
		assert.Equal(t, validUserID, session.UserID)
		assert.Equal(t, validHash, session.TokenHash)
		assert.Equal(t, validExpiry, session.ExpiresAt)
		assert.False(t, session.ID.Compare(ulid.ULID{}) == 0)
		assert.False(t, session.CreatedAt.IsZero())
	})

	t.Run("rejects zero user ID", func(t *testing.T) {
		_, err := auth.NewSession(ulid.ULID{}, validHash, validExpiry)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
		assert.Contains(t, err.Error(), "user ID cannot be zero")
	})

	t.Run("rejects empty token hash", func(t *testing.T) {
		_, err := auth.NewSession(validUserID, "", validExpiry)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_HASH")
		assert.Contains(t, err.Error(), "token hash cannot be empty")
	})

	t.Run("rejects zero expiry time", func(t *testing.T) {
		_, err := auth.NewSession(validUserID, validHash, time.Time{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_EXPIRY")
		assert.Contains(t, err.Error(), "expiry time cannot be zero")
	})
}

func TestSessionConstants(t *testing.T) {
	t.Run("token bytes is 32", func(t *testing.T) {
		assert.Equal(t, 32, auth.SessionTokenBytes)
	})

	t.Run("default TTL is one hour", func(t *testing.T) {
		assert.Equal(t, time.Hour, auth.DefaultSessionTTL)
	})
}
