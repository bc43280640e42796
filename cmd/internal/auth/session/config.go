package session

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls token TTLs, clock skew tolerance, the issuer claim, and the
// HS256 signing secrets. Access and refresh tokens are signed with distinct
// secrets so that one kind can never verify as the other even if the kind
// claim were stripped.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of every token.
	Issuer string

	// AccessTTL defines the lifetime of access tokens.
	AccessTTL time.Duration

	// RefreshTTL defines the lifetime of refresh tokens.
	RefreshTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// AccessSecret and RefreshSecret are the HS256 signing keys.
	// Each must be at least MinSecretBytes long and they must differ.
	AccessSecret  []byte
	RefreshSecret []byte
}

// MinSecretBytes is the minimum accepted length for either signing secret.
const MinSecretBytes = 32

// DefaultConfig returns defaults suitable for development. Secrets are not
// defaulted; they must always come from the environment.
func DefaultConfig() Config {
	return Config{
		Issuer:     "reel",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
	}
}

// Validate checks the configuration invariants shared by Codec and Service.
func (c Config) Validate() error {
	if len(c.AccessSecret) < MinSecretBytes || len(c.RefreshSecret) < MinSecretBytes {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	if c.RefreshTTL < c.AccessTTL {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - REEL_AUTH_ACCESS_SECRET
//   - REEL_AUTH_REFRESH_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - REEL_AUTH_ISSUER
//   - REEL_AUTH_ACCESS_TTL
//   - REEL_AUTH_REFRESH_TTL
//   - REEL_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("REEL_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("REEL_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("REEL_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("REEL_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = []byte(os.Getenv("REEL_AUTH_ACCESS_SECRET"))
	cfg.RefreshSecret = []byte(os.Getenv("REEL_AUTH_REFRESH_SECRET"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
