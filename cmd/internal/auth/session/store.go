package session

import (
	"context"
	"time"
)

// Credential is the stored refresh state for one user: the hash of the only
// refresh token currently accepted for that user, and its expiry.
type Credential struct {
	Hash      string
	ExpiresAt time.Time
}

// Store abstracts persistence of the per-user refresh credential.
//
// Implementations must make Swap atomic per user: of any number of
// concurrent Swap calls presenting the same old hash, exactly one succeeds
// and the rest observe ErrCredentialMismatch. This is what makes refresh
// rotation single-use.
type Store interface {
	// Get returns the stored credential for userID.
	// Returns ErrNoCredential when none is stored or it has expired.
	Get(ctx context.Context, userID string) (Credential, error)

	// Set unconditionally overwrites the credential for userID, invalidating
	// whatever was stored before.
	Set(ctx context.Context, now time.Time, userID, hash string, expiresAt time.Time) error

	// Swap replaces the credential only if the stored hash equals oldHash.
	// Returns ErrNoCredential when nothing (live) is stored, and
	// ErrCredentialMismatch when the stored hash differs.
	Swap(ctx context.Context, now time.Time, userID, oldHash, newHash string, expiresAt time.Time) error

	// Clear removes the credential for userID. Clearing an absent
	// credential is not an error.
	Clear(ctx context.Context, now time.Time, userID string) error
}
