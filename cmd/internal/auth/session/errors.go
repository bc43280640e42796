package session

import "errors"

var (
	// ErrMalformed is returned when a token cannot be parsed, carries the
	// wrong kind, or fails any structural claim check.
	ErrMalformed = errors.New("malformed token")

	// ErrSignatureInvalid is returned when a token's signature does not
	// verify against the configured secret.
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrExpired is returned when a token is past its expiry.
	ErrExpired = errors.New("token expired")

	// ErrNoCredential is returned when no refresh credential is stored for
	// the user.
	ErrNoCredential = errors.New("no refresh credential")

	// ErrCredentialMismatch is returned when the presented refresh token
	// does not match the stored credential. A well-formed, correctly signed
	// token that mismatches is a replay of a rotated credential.
	ErrCredentialMismatch = errors.New("refresh credential mismatch")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
