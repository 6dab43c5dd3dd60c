// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes      = 32 // 32 bytes = 64 hex chars
	DefaultResetTokenTTL = 30 * time.Minute
)

// GenerateResetToken creates a high-entropy reset token and its digest.
// Returns (plaintext_token, sha256_hash, error). The plaintext is handed
// to the user exactly once; only the hash is ever persisted, so a valid
// token cannot be recovered from storage alone.
func GenerateResetToken() (token, hash string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = hex.EncodeToString(buf)
	hash = HashResetToken(token)

	return token, hash, nil
}

// HashResetToken computes the deterministic sha256 digest of a token.
// Determinism is what makes lookup-by-hash possible without persisting
// the plaintext.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// VerifyResetToken checks a plaintext token against a stored digest in
// constant time.
func VerifyResetToken(token, hash string) bool {
	if token == "" || hash == "" {
		return false
	}
	computed := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}
