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

// AdminService manages accounts on behalf of administrators. Every
// mutation takes the acting identity and re-checks the admin role, so a
// missing transport-level gate cannot turn role changes into
// self-service.
type AdminService struct {
	users  UserRepository
	logger *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(users UserRepository) (*AdminService, error) {
	return NewAdminServiceWithLogger(users, slog.Default())
}

// NewAdminServiceWithLogger creates a new AdminService with an explicit
// logger.
func NewAdminServiceWithLogger(users UserRepository, logger *slog.Logger) (*AdminService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &AdminService{users: users, logger: logger}, nil
}

// ListUsers returns all accounts, without secret fields.
func (s *AdminService) ListUsers(ctx context.Context, actor *User) ([]*User, error) {
	if err := Authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").Wrap(err)
	}
	return users, nil
}

// GetUser returns one account by ID, without secret fields.
func (s *AdminService) GetUser(ctx context.Context, actor *User, id ulid.ULID) (*User, error) {
	if err := Authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(err)
		}
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}
	return user.Sanitize(), nil
}

// SetRole changes an account's role. Role mutation is the one privileged
// write in the system and is never self-service.
func (s *AdminService) SetRole(ctx context.Context, actor *User, id ulid.ULID, role Role) error {
	if err := Authorize(actor, RoleAdmin); err != nil {
		return err
	}
	if !role.Valid() {
		return oops.Code("USER_INVALID_ROLE").
			With("role", string(role)).
			Errorf("unknown role %q", role)
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(err)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update role").
			With("id", id.String()).
			Wrap(err)
	}

	s.logger.Info("role changed",
		"user_id", id.String(),
		"role", string(role),
		"actor_id", actor.ID.String(),
	)
	return nil
}

// UpdateUser rewrites an account's profile fields and role in one
// administrative operation.
func (s *AdminService) UpdateUser(ctx context.Context, actor *User, id ulid.ULID, name, email string, role Role) (*User, error) {
	if err := Authorize(actor, RoleAdmin); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, oops.Code("USER_INVALID_ROLE").
			With("role", string(role)).
			Errorf("unknown role %q", role)
	}

	user, err := s.users.GetByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(err)
		}
		return nil, oops.Code("USER_GET_FAILED").With("id", id.String()).Wrap(err)
	}

	user.Name = name
	user.Email = normalized
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, oops.Code("AUTH_EMAIL_TAKEN").
				With("email", normalized).
				Errorf("email is already registered")
		}
		return nil, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", id.String()).
			Wrap(err)
	}

	if user.Role != role {
		if err := s.users.UpdateRole(ctx, id, role); err != nil {
			return nil, oops.Code("USER_UPDATE_FAILED").
				With("operation", "update role").
				With("id", id.String()).
				Wrap(err)
		}
		user.Role = role
	}

	s.logger.Info("user updated",
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
	)
	return user.Sanitize(), nil
}

// DeleteUser removes an account.
func (s *AdminService) DeleteUser(ctx context.Context, actor *User, id ulid.ULID) error {
	if err := Authorize(actor, RoleAdmin); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(err)
		}
		return oops.Code("USER_DELETE_FAILED").With("id", id.String()).Wrap(err)
	}

	s.logger.Info("user deleted",
		"user_id", id.String(),
		"actor_id", actor.ID.String(),
	)
	return nil
}
