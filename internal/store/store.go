// Package store defines the persisted key space shared by the session
// subsystem. Every durable piece of session state (tokens, cookie header,
// serialized user, flags) lives under one of the Key constants so drivers
// stay a dumb key/value surface and the session manager owns all semantics.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("store: not found")

// Keys of the persisted key space. These are stable across app runs; renaming
// one silently logs every installed client out.
const (
	KeyToken         = "auth.token"
	KeyRefreshToken  = "auth.refresh_token"
	KeyTokenExpiry   = "auth.token_expiry" // unix seconds, decimal string
	KeyRestNonce     = "auth.rest_nonce"
	KeyUser          = "auth.user" // canonical user record, JSON
	KeySessionLocked = "auth.session_locked"
	KeyPasswordAuth  = "auth.password_authenticated"
	KeyTokenLoginURL = "auth.token_login_url"
	KeyCookieHeader  = "auth.cookie_header"
	KeyWooAuthHeader = "auth.woo_basic_auth"
	KeyDeviceID      = "device.id"
)

// Store is the root persistence interface. Concrete drivers (sqlite, memory)
// implement this. Values are opaque strings; callers serialize as needed.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set upserts key to value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteAll wipes the whole key space. Used on logout and
	// unrecoverable auth failure.
	DeleteAll(ctx context.Context) error

	// ApplyMigrations brings the underlying schema up to date.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is still usable.
	Ping(ctx context.Context) error
}
