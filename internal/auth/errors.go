// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import "errors"

// ErrNotFound is returned by repositories when a requested record does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when an insert or update
// collides with an existing email.
var ErrEmailTaken = errors.New("email already registered")
