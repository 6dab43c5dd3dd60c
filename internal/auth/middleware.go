// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import (
	"net/http"
	"strings"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

// Authenticate is request-scoped and side-effect-free: it extracts the
// session token from the cookie or Authorization header, verifies it,
// resolves the identity, and attaches it to the request context. Any
// failure, including a token whose user no longer exists, ends the
// request with 401.
func Authenticate(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			identity, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRole gates a handler on the attached identity's role. It must
// be stacked after Authenticate; without a resolved identity it rejects.
func RequireRole(allowed ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if err := Authorize(identity, allowed...); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	const bearer = "Bearer "
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearer) {
		return header[len(bearer):]
	}
	return ""
}
