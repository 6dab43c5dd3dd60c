// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"github.com/samber/oops"
)

// Authorize checks a resolved identity against an allowed-role set. It
// is a pure predicate: the identity must already have been attached by
// authentication, and nothing is mutated.
func Authorize(identity *User, allowed ...Role) error {
	if identity == nil {
		return oops.Code("AUTH_UNAUTHENTICATED").Errorf("no identity resolved")
	}
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return oops.Code("AUTH_FORBIDDEN").
		With("role", string(identity.Role)).
		Errorf("role %q is not allowed to perform this operation", identity.Role)
}
