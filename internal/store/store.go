package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("store: not found")
)

// Well-known keys. Each key has exactly one writing component; everyone
// else only reads.
const (
	KeyAccessToken     = "access_token"
	KeyRefreshToken    = "refresh_token"
	KeyTokenExpiresAt  = "token_expires_at"
	KeyUserData        = "user_data"
	KeyUserPermissions = "user_permissions"
	KeyUserRoles       = "user_roles"
	KeyUserRoleIDs     = "user_role_ids"
	KeyTicketCache     = "ticket_cache"
	KeySyncQueue       = "sync_queue"
)

// SessionKeys lists every key cleared atomically on logout or terminal
// refresh failure.
var SessionKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyTokenExpiresAt,
	KeyUserData,
	KeyUserPermissions,
	KeyUserRoles,
	KeyUserRoleIDs,
	KeyTicketCache,
	KeySyncQueue,
}

// Store is durable string-keyed storage surviving process restarts. Values
// are opaque JSON-serialized blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear removes the given keys as a single operation. Missing keys are
	// not an error.
	Clear(ctx context.Context, keys ...string) error
}
