// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalcart/identity/internal/auth"
	"github.com/globalcart/identity/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	t.Run("valid user", func(t *testing.T) {
		user, err := auth.NewUser("Ada Lovelace", "Ada@Example.COM", "$argon2id$fake")
		require.NoError(t, err)

		assert.NotZero(t, user.ID)
		assert.Equal(t, "Ada Lovelace", user.Name)
		assert.Equal(t, "ada@example.com", user.Email, "email should be normalized")
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.False(t, user.CreatedAt.IsZero())
		assert.Nil(t, user.ResetTokenHash)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := auth.NewUser("", "ada@example.com", "$argon2id$fake")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_NAME")
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := auth.NewUser("Ada", "not-an-email", "$argon2id$fake")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
	})

	t.Run("empty hash", func(t *testing.T) {
		_, err := auth.NewUser("Ada", "ada@example.com", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USER_INVALID_HASH")
	})
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{"valid", "Ada", ""},
		{"minimum length", "Al", ""},
		{"empty", "", "USER_INVALID_NAME"},
		{"whitespace only", "   ", "USER_INVALID_NAME"},
		{"too short", "A", "USER_INVALID_NAME"},
		{"too long", strings.Repeat("a", auth.MaxNameLength+1), "USER_INVALID_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateName(tt.input)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Run("lowercases and trims", func(t *testing.T) {
		got, err := auth.NormalizeEmail("  Ada@Example.COM ")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", got)
	})

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no at sign", "adaexample.com"},
		{"no domain dot", "ada@example"},
		{"whitespace inside", "ada lovelace@example.com"},
		{"double at", "ada@@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.NormalizeEmail(tt.input)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, auth.ValidatePassword("longenough"))

	err := auth.ValidatePassword("")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")

	err = auth.ValidatePassword("short")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
}

func TestUser_Sanitize(t *testing.T) {
	hash := "digest"
	expires := time.Now().Add(time.Hour)
	user := &auth.User{
		Name:                "Ada",
		Email:               "ada@example.com",
		PasswordHash:        "$argon2id$secret",
		ResetTokenHash:      &hash,
		ResetTokenExpiresAt: &expires,
	}

	clean := user.Sanitize()

	assert.Empty(t, clean.PasswordHash)
	assert.Nil(t, clean.ResetTokenHash)
	assert.Nil(t, clean.ResetTokenExpiresAt)
	assert.Equal(t, "Ada", clean.Name)

	// Original is untouched
	assert.Equal(t, "$argon2id$secret", user.PasswordHash)
	assert.NotNil(t, user.ResetTokenHash)
}

func TestUser_HasOutstandingReset(t *testing.T) {
	now := time.Now()
	hash := "digest"
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&auth.User{}).HasOutstandingReset(now))
	assert.True(t, (&auth.User{ResetTokenHash: &hash, ResetTokenExpiresAt: &future}).HasOutstandingReset(now))
	assert.False(t, (&auth.User{ResetTokenHash: &hash, ResetTokenExpiresAt: &past}).HasOutstandingReset(now))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, auth.RoleUser.Valid())
	assert.True(t, auth.RoleAdmin.Valid())
	assert.False(t, auth.Role("superuser").Valid())
	assert.False(t, auth.Role("").Valid())
}
