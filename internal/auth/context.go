// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import "context"

type identityContextKey struct{}

// WithIdentity attaches a resolved identity to the context for
// downstream handlers.
func WithIdentity(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, identityContextKey{}, user)
}

// IdentityFromContext returns the identity attached by the
// authentication middleware, if any.
func IdentityFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(identityContextKey{}).(*User)
	return user, ok
}
