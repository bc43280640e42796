package app

import (
	"errors"

	"reel/cmd/security/token"
)

// ValidateSecurityConfig enforces Reel's security policy at startup.
// Fail-fast: production must not silently fall back to unkeyed hashing of
// refresh credentials.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	// 32 bytes minimum for an HMAC-SHA256 secret, measured as raw bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: REEL_REQUIRE_TOKEN_HMAC=true but REEL_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: REEL_REQUIRE_TOKEN_HMAC=true but REEL_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: REEL_REQUIRE_TOKEN_HMAC=true but credential hasher is not in HMAC mode")
	}

	return nil
}
