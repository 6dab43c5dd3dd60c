// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

// Package auth is the authentication and authorization core of the
// identity service.
//
// # Domain Types
//
// User is the identity record. Create one through NewUser, which
// validates the mutable fields and assigns the ULID; direct struct
// initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated values.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - register, login, session verification, password change,
//     profile updates
//   - PasswordResetService - forgot-password and reset-password flows
//   - AdminService - role and account management, admin-gated
//
// Services are created with New*Service constructors that validate
// dependencies.
package auth
