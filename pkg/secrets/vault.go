// Package secrets provides an encrypted-at-rest secret store used for the
// remembered-credential cache. The session orchestrator only sees the Vault
// interface, so the storage backend can vary by platform (OS keychain on
// mobile, an encrypted file here) without changing orchestration logic.
package secrets

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("secrets: not found")

// Well-known secret keys.
const (
	KeyRememberedEmail    = "remembered.email"
	KeyRememberedPassword = "remembered.password"
)

// Vault is a capability-gated secure store. A nil Vault means the capability
// is absent and features that need it (remember me, silent reauth) are
// disabled.
type Vault interface {
	// GetSecret returns the plaintext secret for key, or ErrNotFound.
	GetSecret(ctx context.Context, key string) (string, error)

	// SetSecret encrypts and stores a secret under key.
	SetSecret(ctx context.Context, key, value string) error

	// RemoveSecret deletes the secret. Removing an absent key is not an error.
	RemoveSecret(ctx context.Context, key string) error
}
