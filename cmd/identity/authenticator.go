package identity

import (
	"context"
	"strings"
	"time"
)

// Authenticator verifies primary credentials (identifier + password) against
// the user store.
//
// Failure kinds are deliberately narrow: ErrNotFound for an unknown
// identifier, ErrBadCredentials for a wrong password. To keep the two paths
// close in timing, an unknown identifier still performs a full argon2id
// verify against a dummy hash.
type Authenticator struct {
	store     Store
	dummyHash string
}

// NewAuthenticator constructs an Authenticator over the given store.
func NewAuthenticator(store Store) (*Authenticator, error) {
	if store == nil {
		return nil, OpError{Op: "identity.NewAuthenticator", Kind: ErrInvalidInput, Msg: "nil store"}
	}

	a := &Authenticator{store: store}

	// Dummy hash for timing-resistant login checks. If hashing fails (bad env
	// config) the constructor still succeeds; Login degrades gracefully.
	if h, err := HashPassword("dummy-password-for-timing-only"); err == nil {
		a.dummyHash = h
	}

	return a, nil
}

// Login resolves identifier by either alternate key (username or email) and
// verifies the password. Returns the user projection on success.
func (a *Authenticator) Login(ctx context.Context, identifier, plainPassword string) (User, error) {
	const op = "identity.Login"

	if strings.TrimSpace(identifier) == "" || strings.TrimSpace(plainPassword) == "" {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "identifier and password are required"}
	}

	ua, err := a.store.GetUserAuthByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) && a.dummyHash != "" {
			_, _ = VerifyPassword(plainPassword, a.dummyHash)
		}
		return User{}, err
	}

	ok, err := VerifyPassword(plainPassword, ua.PasswordHash)
	if err != nil || !ok {
		return User{}, OpError{Op: op, Kind: ErrBadCredentials}
	}

	return ua.User, nil
}

// ChangePassword verifies the old password for userID and replaces the stored
// hash with a hash of the new one.
//
// It does not touch the refresh credential; revocation on password change is
// the caller's decision at the API boundary.
func (a *Authenticator) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	const op = "identity.ChangePassword"

	if strings.TrimSpace(oldPassword) == "" || strings.TrimSpace(newPassword) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "old and new password are required"}
	}

	u, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ua, err := a.store.GetUserAuthByIdentifier(ctx, u.Username)
	if err != nil {
		return err
	}

	ok, err := VerifyPassword(oldPassword, ua.PasswordHash)
	if err != nil || !ok {
		return OpError{Op: op, Kind: ErrBadCredentials}
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	return a.store.UpdatePassword(ctx, userID, newHash, time.Now().UTC())
}
