package identity

import "reel/cmd/security/password"

// Password hashing is delegated to cmd/security/password as the single source
// of truth for Argon2id parameters and password policy (both env-tunable).

// HashPassword returns a PHC-style Argon2id hash string for plain.
// Policy violations surface as package password sentinel errors.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		// Invalid env is an operational error, not a weak fallback.
		return "", err
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks plain against a PHC Argon2id hash in constant time.
func VerifyPassword(plain, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	return cfg.Verify(encodedPHC, plain)
}
