// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the coarse-grained permission tier used for authorization
// decisions.
type Role string

// Known roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Name validation constraints.
const (
	MinNameLength = 2
	MaxNameLength = 60
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// emailRegex is deliberately loose: one @, no whitespace, a dot in the
// domain. Deliverability is proven by the reset flow, not the regex.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents an identity record.
//
// PasswordHash, ResetTokenHash, and ResetTokenExpiresAt are secret
// bookkeeping: repositories omit them unless the caller asks for the
// secret-bearing variant, and Sanitize strips them before a User leaves
// the core.
type User struct {
	ID                  ulid.ULID
	Name                string
	Email               string
	PasswordHash        string
	Role                Role
	AvatarURL           *string
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewUser creates a validated User with a fresh ULID and the default
// role. passwordHash must already be a hasher-produced digest; NewUser
// never sees a plaintext password.
func NewUser(name, email, passwordHash string) (*User, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           ulid.Make(),
		Name:         name,
		Email:        normalized,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Sanitize returns a copy with all secret fields cleared. Handlers must
// only ever serialize sanitized users.
func (u *User) Sanitize() *User {
	c := *u
	c.PasswordHash = ""
	c.ResetTokenHash = nil
	c.ResetTokenExpiresAt = nil
	return &c
}

// HasOutstandingReset reports whether a reset token is currently
// outstanding and unexpired at the given time.
func (u *User) HasOutstandingReset(now time.Time) bool {
	return u.ResetTokenHash != nil &&
		u.ResetTokenExpiresAt != nil &&
		u.ResetTokenExpiresAt.After(now)
}

// ValidateName validates a display name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return oops.Code("USER_INVALID_NAME").Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return oops.Code("USER_INVALID_NAME").
			With("min", MinNameLength).
			Errorf("name must be at least %d characters", MinNameLength)
	}
	if len(name) > MaxNameLength {
		return oops.Code("USER_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// NormalizeEmail validates an email address and returns its canonical
// lower-cased form. Email is the login key, so normalization must happen
// on every write and every lookup.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", oops.Code("USER_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return "", oops.Code("USER_INVALID_EMAIL").
			With("email", email).
			Errorf("email address is not valid")
	}
	return email, nil
}

// ValidatePassword checks the plaintext password against policy before
// it is hashed.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
//
// includeHash selects the secret-bearing read: when false the returned
// User carries an empty PasswordHash and nil reset-token fields.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken (wrapped) when the
	// email is already registered.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID, includeHash bool) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string, includeHash bool) (*User, error)

	// GetByResetTokenHash retrieves the user holding the given reset token
	// hash whose token expiry is strictly after now. The expiry filter is
	// applied by the store; a hash match alone never returns a user.
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// Update persists profile fields (name, email, avatar). Role and all
	// secret fields are not written by this method.
	Update(ctx context.Context, user *User) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetResetToken overwrites the reset token hash and expiry, replacing
	// any outstanding token. Touches nothing else.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// ClearResetToken removes any outstanding reset token. Touches
	// nothing else.
	ClearResetToken(ctx context.Context, id ulid.ULID) error

	// ResetPassword replaces the password hash and clears both reset
	// token columns in a single statement.
	ResetPassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateRole replaces only the role.
	UpdateRole(ctx context.Context, id ulid.ULID, role Role) error

	// List returns all users, newest first, without secret fields.
	List(ctx context.Context) ([]*User, error)

	// Delete removes a user.
	Delete(ctx context.Context, id ulid.ULID) error
}
