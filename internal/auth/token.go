// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultSessionTokenTTL is the session lifetime used when none is
// configured.
const DefaultSessionTokenTTL = 24 * time.Hour

// sessionClaims carries the user ID alongside the registered claims.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// SessionTokens issues and verifies signed session tokens. Verification
// is purely cryptographic; there is no server-side session table, so
// revocation happens only through client-side discard or expiry.
//
// The signing secret is set once at construction and never mutated.
type SessionTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionTokens creates a SessionTokens service. ttl <= 0 selects
// DefaultSessionTokenTTL.
func NewSessionTokens(secret []byte, ttl time.Duration) (*SessionTokens, error) {
	if len(secret) == 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("session signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}
	return &SessionTokens{secret: secret, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (s *SessionTokens) TTL() time.Duration {
	return s.ttl
}

// Issue produces a signed token encoding the user ID, expiring one TTL
// from now. Pure function of secret, input, and clock.
func (s *SessionTokens) Issue(userID ulid.ULID) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(s.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			// NumericDate has second resolution, so the jti is what keeps
			// tokens issued within the same second distinct.
			ID:        ulid.Make().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: userID.String(),
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_SIGN_FAILED").Wrap(err)
	}
	return token, expiresAt, nil
}

// Verify parses and validates a session token, returning the encoded
// user ID. Malformed, tampered, and expired tokens all fail with the
// same code so callers cannot distinguish them.
func (s *SessionTokens) Verify(token string) (ulid.ULID, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return ulid.ULID{}, oops.Code("AUTH_TOKEN_INVALID").Errorf("session token is invalid or expired")
	}

	id, err := ulid.Parse(claims.UserID)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_TOKEN_INVALID").Errorf("session token is invalid or expired")
	}
	return id, nil
}
