// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
)

func TestSessionRepository_Create(t *testing.T) {
	session := &auth.Session{
		ID:        ulid.Make(),
		UserID:    ulid.Make(),
		TokenHash: auth.HashSessionToken("sometoken"),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}

	t.Run("successful insert", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.UserID.String(), session.TokenHash, session.CreatedAt, session.ExpiresAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.Create(context.Background(), session))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.UserID.String(), session.TokenHash, session.CreatedAt, session.ExpiresAt).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		err = repo.Create(context.Background(), session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	sessionID := ulid.Make()
	userID := ulid.Make()
	tokenHash := auth.HashSessionToken("sometoken")
	createdAt := time.Now()
	expiresAt := createdAt.Add(time.Hour)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows([]string{"id", "user_id", "token_hash", "created_at", "expires_at"}).
					AddRow(sessionID.String(), userID.String(), tokenHash, createdAt, expiresAt)
				mock.ExpectQuery(`SELECT id, user_id, token_hash, created_at, expires_at`).
					WithArgs(tokenHash).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, user_id, token_hash, created_at, expires_at`).
					WithArgs(tokenHash).
					WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "token_hash", "created_at", "expires_at"}))
			},
			wantErr: auth.ErrNotFound,
		},
		{
			name: "database error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT id, user_id, token_hash, created_at, expires_at`).
					WithArgs(tokenHash).
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			repo := NewSessionRepository(mock)
			got, err := repo.GetByTokenHash(context.Background(), tokenHash)

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Equal(t, sessionID, got.ID)
				assert.Equal(t, userID, got.UserID)
				assert.Equal(t, tokenHash, got.TokenHash)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestSessionRepository_Delete(t *testing.T) {
	tokenHash := auth.HashSessionToken("sometoken")

	t.Run("deletes existing session", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
			WithArgs(tokenHash).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		repo := NewSessionRepository(mock)
		require.NoError(t, repo.Delete(context.Background(), tokenHash))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected is not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
			WithArgs(tokenHash).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := NewSessionRepository(mock)
		err = repo.Delete(context.Background(), tokenHash)
		assert.ErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE token_hash`).
			WithArgs(tokenHash).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		err = repo.Delete(context.Background(), tokenHash)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	t.Run("returns count of removed sessions", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 7))

		repo := NewSessionRepository(mock)
		removed, err := repo.DeleteExpired(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), removed)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		repo := NewSessionRepository(mock)
		_, err = repo.DeleteExpired(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
