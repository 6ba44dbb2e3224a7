// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
)

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("different passwords produce different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash("password1")
		require.NoError(t, err)
		hash2, err := hasher.Hash("password2")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid hash format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "not-a-valid-hash")
		assert.Error(t, err)
	})

	t.Run("wrong algorithm returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported hash algorithm")
	})

	t.Run("invalid version format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid parameters format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$invalid$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid salt base64 returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("invalid hash base64 returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!")
		assert.Error(t, err)
	})

	t.Run("threads overflow returns error", func(t *testing.T) {
		// threads=256 exceeds uint8 max (255)
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "threads value")
	})

	t.Run("unsupported argon2 version returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported argon2 version")
	})

	t.Run("zero cost parameters return error", func(t *testing.T) {
		// argon2.IDKey panics when time, memory, or parallelism is zero,
		// so zero values must be rejected as malformed input.
		for _, encoded := range []string{
			"$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=0,t=1,p=4$c2FsdA$aGFzaA",
		} {
			_, err := hasher.Verify("password", encoded)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "cost parameters must be positive")
		}
	})
}

func TestHasherCustomParams(t *testing.T) {
	light := auth.NewArgon2idHasherWithParams(auth.Params{
		Time:    1,
		Memory:  8 * 1024,
		Threads: 1,
	})

	t.Run("encodes parameters into hash", func(t *testing.T) {
		hash, err := light.Hash("password")
		require.NoError(t, err)
		assert.Contains(t, hash, "m=8192,t=1,p=1")
	})

	t.Run("default hasher verifies hash from custom params", func(t *testing.T) {
		// Cost parameters travel inside the PHC string, so verification
		// works across hashers configured differently.
		hash, err := light.Hash("portable")
		require.NoError(t, err)

		ok, err := auth.NewArgon2idHasher().Verify("portable", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("zero fields fall back to defaults", func(t *testing.T) {
		hasher := auth.NewArgon2idHasherWithParams(auth.Params{})
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.Contains(t, hash, "m=65536,t=1,p=4")
	})
}
