// Package tokenstore persists the platform-admin bearer token across process
// restarts. The token is opaque: it is stored and compared for presence only,
// never parsed. Expiry is not handled here; a stale token is discovered when
// the backend rejects it.
package tokenstore

import (
	"context"
	"errors"
)

// DefaultKey is the reserved key the admin token is stored under.
const DefaultKey = "sentinel_admin_token"

// ErrEmptyToken indicates an attempt to store an empty token.
var ErrEmptyToken = errors.New("token must not be empty")

// Store persists a single bearer token. Set and Clear mirror to the backing
// storage synchronously so a restart recovers the same session.
type Store interface {
	// Get returns the stored token. ok is false when no token is stored.
	Get(ctx context.Context) (token string, ok bool, err error)
	// Set stores the token, replacing any previous value.
	Set(ctx context.Context, token string) error
	// Clear removes the stored token. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
