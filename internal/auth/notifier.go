// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

package auth

import "context"

// Notifier delivers out-of-band messages to users. The reset flow treats
// delivery failure as fatal and rolls back the persisted token, so
// implementations must return an error whenever delivery did not happen.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}
