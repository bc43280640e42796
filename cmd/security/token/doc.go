// Package token provides the hashing primitive for stored refresh credentials.
//
// The plain refresh credential is never persisted; only a 64-char hex digest
// is written to the credential store and compared during rotation.
//
// Modes:
//   - Default: SHA-256(credential) for dev and back-compat.
//   - Keyed: HMAC-SHA256(credential, key) when REEL_TOKEN_HMAC_KEY is set.
package token
