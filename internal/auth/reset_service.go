// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService handles the forgot-password and reset-password
// flows.
type PasswordResetService struct {
	users    UserRepository
	tokens   *SessionTokens
	hasher   PasswordHasher
	notifier Notifier
	ttl      time.Duration
	logger   *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService. ttl <= 0
// selects DefaultResetTokenTTL.
func NewPasswordResetService(users UserRepository, tokens *SessionTokens, hasher PasswordHasher, notifier Notifier, ttl time.Duration) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(users, tokens, hasher, notifier, ttl, slog.Default())
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService
// with an explicit logger.
func NewPasswordResetServiceWithLogger(users UserRepository, tokens *SessionTokens, hasher PasswordHasher, notifier Notifier, ttl time.Duration, logger *slog.Logger) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("session token service is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Errorf("notifier is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// RequestReset issues a single-use reset token for the account with the
// given email and delivers the plaintext out-of-band.
//
// Issuing overwrites any outstanding token, so at most one is ever
// valid. If delivery fails the persisted token is cleared before the
// error surfaces: the user must never be left holding a token they were
// never shown.
//
// Unknown email fails with USER_NOT_FOUND. Unlike login, this discloses
// account existence; no credential is at stake in this flow.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, normalized, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").
				With("email", normalized).
				Errorf("no account registered for this email")
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	expiresAt := time.Now().Add(s.ttl)
	if err := s.users.SetResetToken(ctx, user.ID, hash, expiresAt); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset token").
			Wrap(err)
	}

	subject := "Password recovery"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Reset token: %s\n\n"+
			"The token expires in %s. Ignore this message if you did not request it.",
		token, s.ttl,
	)

	if sendErr := s.notifier.Send(ctx, user.Email, subject, body); sendErr != nil {
		// Roll back so no unusable token is left outstanding.
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.logger.Error("reset token rollback failed",
				"user_id", user.ID.String(),
				"error", clearErr,
			)
		}
		return oops.Code("NOTIFY_DELIVERY_FAILED").
			With("operation", "send reset email").
			Wrap(sendErr)
	}

	s.logger.Info("reset token issued", "user_id", user.ID.String())
	return nil
}

// ResetPassword consumes a reset token: the supplied plaintext is
// hashed, matched against an unexpired stored digest, and on success the
// password changes and both token fields clear in the same write. A
// fresh session is issued so the user is logged in immediately.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword, confirm string) (*User, Session, error) {
	if token == "" {
		return nil, Session{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token is invalid or expired")
	}

	user, err := s.users.GetByResetTokenHash(ctx, HashResetToken(token), time.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Session{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token is invalid or expired")
		}
		return nil, Session{}, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by reset token hash").
			Wrap(err)
	}

	if newPassword != confirm {
		return nil, Session{}, oops.Code("RESET_PASSWORD_MISMATCH").Errorf("password confirmation does not match")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, Session{}, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, Session{}, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	// Single statement: password replaced and token columns cleared
	// together, making the token single-use.
	if err := s.users.ResetPassword(ctx, user.ID, hash); err != nil {
		return nil, Session{}, oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "reset password").
			Wrap(err)
	}

	tokenStr, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, Session{}, oops.Code("AUTH_SESSION_ISSUE_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}

	s.logger.Info("password reset completed", "user_id", user.ID.String())
	return user.Sanitize(), Session{Token: tokenStr, ExpiresAt: expiresAt}, nil
}
