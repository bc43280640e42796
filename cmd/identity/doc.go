// Package identity implements Reel's user-record and authentication foundation.
//
// It contains the user store boundary (Postgres and in-memory), password
// hashing wrappers, ULID identifiers, and the Authenticator used by the HTTP
// layer. The package is intentionally dependency-light and security-first.
package identity
