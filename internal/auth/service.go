// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session is an issued session credential: the signed token and its
// expiry. It is never persisted.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// dummyPasswordHash is verified against when a login email matches no
// user, keeping response time flat so the login boundary never discloses
// whether an email is registered. It is a fake digest that matches no
// password.
//
//nolint:gosec // G101: intentionally fake digest for timing-attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// errInvalidCredentials builds the single externally-visible login
// failure. Unknown email and wrong password both return exactly this.
func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}

// Service provides registration, login, session verification, and
// credential maintenance.
type Service struct {
	users  UserRepository
	tokens *SessionTokens
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, tokens *SessionTokens, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, tokens, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, tokens *SessionTokens, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("session token service is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{users: users, tokens: tokens, hasher: hasher, logger: logger}, nil
}

// Register creates a new account with the default role and issues a
// session for it.
func (s *Service) Register(ctx context.Context, name, email, password string, avatarURL *string) (*User, Session, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, Session{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, Session{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, hash)
	if err != nil {
		return nil, Session{}, err
	}
	user.AvatarURL = avatarURL

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, Session{}, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", user.Email).
				Errorf("email is already registered")
		}
		return nil, Session{}, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	session, err := s.issueSession(user.ID)
	if err != nil {
		return nil, Session{}, err
	}
	return user.Sanitize(), session, nil
}

// Login authenticates by email and password and issues a session token.
// Unknown email and wrong password produce identical failures, and a
// dummy verification keeps the unknown-email path's timing consistent.
func (s *Service) Login(ctx context.Context, email, password string) (*User, Session, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		// Malformed input cannot match any account; fail the same way.
		normalized = email
	}

	user, lookupErr := s.users.GetByEmail(ctx, normalized, true)

	targetHash := dummyPasswordHash
	userExists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		userExists = true
	case errors.Is(lookupErr, ErrNotFound):
		// Keep verifying against the dummy hash below.
	default:
		return nil, Session{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return nil, Session{}, errInvalidCredentials()
		}
		return nil, Session{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !userExists || !valid {
		return nil, Session{}, errInvalidCredentials()
	}

	session, err := s.issueSession(user.ID)
	if err != nil {
		return nil, Session{}, err
	}
	return user.Sanitize(), session, nil
}

// Authenticate verifies a raw session token and resolves the identity it
// encodes. A token whose user no longer exists fails the same way as an
// invalid token; a partial identity is never attached.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*User, error) {
	if rawToken == "" {
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Errorf("no session token presented")
	}

	userID, err := s.tokens.Verify(rawToken)
	if err != nil {
		return nil, oops.Code("AUTH_UNAUTHENTICATED").Errorf("session token is invalid or expired")
	}

	user, err := s.users.GetByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_UNAUTHENTICATED").Errorf("session token is invalid or expired")
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}
	return user.Sanitize(), nil
}

// ChangePassword verifies the old password and replaces it with the new
// one. Sessions already issued remain valid; verification is purely
// cryptographic and does not consult stored credentials.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").With("id", userID.String()).Wrap(err)
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify old password").
			Wrap(err)
	}
	if !valid {
		return errInvalidCredentials()
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	s.logger.Info("password changed", "user_id", userID.String())
	return nil
}

// UpdateProfile re-validates and persists the mutable profile fields.
// Role is not settable through this path.
func (s *Service) UpdateProfile(ctx context.Context, userID ulid.ULID, name, email string, avatarURL *string) (*User, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("id", userID.String()).Wrap(err)
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	user.Name = name
	user.Email = normalized
	user.AvatarURL = avatarURL
	user.UpdatedAt = time.Now()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", normalized).
				Errorf("email is already registered")
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			Wrap(err)
	}
	return user.Sanitize(), nil
}

func (s *Service) issueSession(userID ulid.ULID) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(userID)
	if err != nil {
		return Session{}, oops.Code("AUTH_SESSION_ISSUE_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}
