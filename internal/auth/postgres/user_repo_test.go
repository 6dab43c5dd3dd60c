// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalcart/identity/internal/auth"
	"github.com/globalcart/identity/pkg/errutil"
)

func newMockRepo(t *testing.T) (*UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewUserRepository(mock), mock
}

func sampleUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("Ada Lovelace", "ada@example.com", "$argon2id$digest")
	require.NoError(t, err)
	return user
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"}
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		user := sampleUser(t)

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID.String(), user.Name, user.Email, user.PasswordHash,
				string(user.Role), user.AvatarURL, user.ResetTokenHash,
				user.ResetTokenExpiresAt, user.CreatedAt, user.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, user))
	})

	t.Run("duplicate email maps to ErrEmailTaken", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		user := sampleUser(t)

		mock.ExpectExec("INSERT INTO users").
			WithArgs(user.ID.String(), user.Name, user.Email, user.PasswordHash,
				string(user.Role), user.AvatarURL, user.ResetTokenHash,
				user.ResetTokenExpiresAt, user.CreatedAt, user.UpdatedAt).
			WillReturnError(uniqueViolation())

		err := repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
		errutil.AssertErrorCode(t, err, "AUTH_EMAIL_TAKEN")
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()

	publicCols := []string{"id", "name", "email", "role", "avatar_url", "created_at", "updated_at"}
	secretCols := append(append([]string{}, publicCols...),
		"password_hash", "reset_token_hash", "reset_token_expires_at")

	t.Run("without hash", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		now := time.Now()

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email = LOWER").
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(publicCols).
				AddRow(id.String(), "Ada", "ada@example.com", "user", nil, now, now))

		user, err := repo.GetByEmail(ctx, "ada@example.com", false)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Empty(t, user.PasswordHash)
		assert.Nil(t, user.ResetTokenHash)
	})

	t.Run("with hash", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		now := time.Now()

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email = LOWER").
			WithArgs("ada@example.com").
			WillReturnRows(pgxmock.NewRows(secretCols).
				AddRow(id.String(), "Ada", "ada@example.com", "admin", nil, now, now,
					"$argon2id$digest", nil, nil))

		user, err := repo.GetByEmail(ctx, "ada@example.com", true)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$digest", user.PasswordHash)
		assert.Equal(t, auth.RoleAdmin, user.Role)
	})

	t.Run("not found wraps ErrNotFound", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("SELECT (.+) FROM users WHERE email = LOWER").
			WithArgs("ghost@example.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByEmail(ctx, "ghost@example.com", false)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})
}

func TestUserRepository_GetByResetTokenHash(t *testing.T) {
	ctx := context.Background()
	secretCols := []string{"id", "name", "email", "role", "avatar_url", "created_at", "updated_at",
		"password_hash", "reset_token_hash", "reset_token_expires_at"}

	t.Run("unexpired token resolves", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := ulid.Make()
		now := time.Now()
		hash := "digest"
		expires := now.Add(time.Minute)

		mock.ExpectQuery(`WHERE reset_token_hash = \$1 AND reset_token_expires_at > \$2`).
			WithArgs(hash, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(secretCols).
				AddRow(id.String(), "Ada", "ada@example.com", "user", nil, now, now,
					"$argon2id$digest", &hash, &expires))

		user, err := repo.GetByResetTokenHash(ctx, hash, now)
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
	})

	t.Run("expired or unknown token", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`WHERE reset_token_hash = \$1 AND reset_token_expires_at > \$2`).
			WithArgs("stale", pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByResetTokenHash(ctx, "stale", time.Now())
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_ResetPassword(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("clears token columns with the password write", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`SET password_hash = \$2,\s+reset_token_hash = NULL,\s+reset_token_expires_at = NULL`).
			WithArgs(id.String(), "$argon2id$new").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.ResetPassword(ctx, id, "$argon2id$new"))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`SET password_hash = \$2`).
			WithArgs(id.String(), "$argon2id$new").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.ResetPassword(ctx, id, "$argon2id$new")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_SetAndClearResetToken(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("set", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		expires := time.Now().Add(30 * time.Minute)

		mock.ExpectExec(`UPDATE users SET reset_token_hash = \$2, reset_token_expires_at = \$3`).
			WithArgs(id.String(), "digest", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetResetToken(ctx, id, "digest", expires))
	})

	t.Run("set for unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		expires := time.Now().Add(30 * time.Minute)

		mock.ExpectExec(`UPDATE users SET reset_token_hash = \$2`).
			WithArgs(id.String(), "digest", expires).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetResetToken(ctx, id, "digest", expires)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("clear", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.ClearResetToken(ctx, id))
	})
}

func TestUserRepository_UpdateRole(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("updates", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET role = \$2`).
			WithArgs(id.String(), "admin").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateRole(ctx, id, auth.RoleAdmin))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET role = \$2`).
			WithArgs(id.String(), "admin").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateRole(ctx, id, auth.RoleAdmin)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate email maps to ErrEmailTaken", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		user := sampleUser(t)

		mock.ExpectExec(`UPDATE users\s+SET name = \$2, email = \$3`).
			WithArgs(user.ID.String(), user.Name, user.Email, user.AvatarURL, user.UpdatedAt).
			WillReturnError(uniqueViolation())

		err := repo.Update(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	publicCols := []string{"id", "name", "email", "role", "avatar_url", "created_at", "updated_at"}

	repo, mock := newMockRepo(t)
	now := time.Now()
	id1 := ulid.Make()
	id2 := ulid.Make()

	mock.ExpectQuery(`SELECT (.+) FROM users ORDER BY id DESC`).
		WillReturnRows(pgxmock.NewRows(publicCols).
			AddRow(id2.String(), "Grace", "grace@example.com", "admin", nil, now, now).
			AddRow(id1.String(), "Ada", "ada@example.com", "user", nil, now, now))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, id2, users[0].ID)
	assert.Equal(t, auth.RoleAdmin, users[0].Role)
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("deletes", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(ctx, id))
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
	})

	t.Run("database failure", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnError(errors.New("connection reset"))

		err := repo.Delete(ctx, id)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_DELETE_FAILED")
	})
}
