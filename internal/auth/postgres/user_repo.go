// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

// Package postgres implements auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/globalcart/identity/internal/auth"
)

// DB is the subset of pgxpool.Pool the repository uses. Narrowing to an
// interface lets tests substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

const publicColumns = `id, name, email, role, avatar_url, created_at, updated_at`

const secretColumns = `id, name, email, role, avatar_url, created_at, updated_at,
	       password_hash, reset_token_hash, reset_token_expires_at`

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, name, email, password_hash, role, avatar_url,
			reset_token_hash, reset_token_expires_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.AvatarURL,
		user.ResetTokenHash,
		user.ResetTokenExpiresAt,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("AUTH_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID, includeHash bool) (*auth.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+columns(includeHash)+` FROM users WHERE id = $1`,
		id.String(),
	)

	user, err := scanUser(row, includeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string, includeHash bool) (*auth.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+columns(includeHash)+` FROM users WHERE email = LOWER($1)`,
		email,
	)

	user, err := scanUser(row, includeHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// GetByResetTokenHash retrieves the user holding an unexpired reset
// token with the given hash. The expiry comparison happens in SQL so a
// stale hash can never resolve to a user.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+secretColumns+`
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2
	`, tokenHash, now)

	user, err := scanUser(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").Wrap(err)
	}
	return user, nil
}

// Update persists profile fields. Role and secret columns are not
// written by this statement.
func (r *UserRepository) Update(ctx context.Context, user *auth.User) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET name = $2, email = $3, avatar_url = $4, updated_at = $5
		WHERE id = $1
	`,
		user.ID.String(),
		user.Name,
		user.Email,
		user.AvatarURL,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("AUTH_EMAIL_TAKEN").
				With("email", user.Email).
				Wrap(auth.ErrEmailTaken)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("id", user.ID.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetResetToken overwrites the reset token columns, invalidating any
// prior token.
func (r *UserRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET reset_token_hash = $2, reset_token_expires_at = $3 WHERE id = $1
	`, id.String(), tokenHash, expiresAt)
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearResetToken removes any outstanding reset token.
func (r *UserRepository) ClearResetToken(ctx context.Context, id ulid.ULID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users SET reset_token_hash = NULL, reset_token_expires_at = NULL WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_CLEAR_RESET_TOKEN_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	return nil
}

// ResetPassword replaces the password hash and clears the reset token
// columns in one statement, making the token single-use.
func (r *UserRepository) ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2,
		    reset_token_hash = NULL,
		    reset_token_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USER_RESET_PASSWORD_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdateRole replaces only the role.
func (r *UserRepository) UpdateRole(ctx context.Context, id ulid.ULID, role auth.Role) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET role = $2, updated_at = now() WHERE id = $1
	`, id.String(), string(role))
	if err != nil {
		return oops.Code("USER_UPDATE_ROLE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns all users, newest first, without secret columns.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+publicColumns+` FROM users ORDER BY id DESC`,
	)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows, false)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").
				With("operation", "scan row").
				Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate rows").
			Wrap(err)
	}
	return users, nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func columns(includeHash bool) string {
	if includeHash {
		return secretColumns
	}
	return publicColumns
}

// scanUser scans a row produced by publicColumns or secretColumns.
func scanUser(row pgx.Row, includeHash bool) (*auth.User, error) {
	var (
		user    auth.User
		idStr   string
		roleStr string
	)

	dest := []any{
		&idStr, &user.Name, &user.Email, &roleStr, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt,
	}
	if includeHash {
		dest = append(dest, &user.PasswordHash, &user.ResetTokenHash, &user.ResetTokenExpiresAt)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_CORRUPT_ID").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.Role = auth.Role(roleStr)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
